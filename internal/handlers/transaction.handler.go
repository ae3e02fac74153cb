package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
)

type TransactionService interface {
	ProcessEarn(ctx context.Context, req model.EarnRequest) (*model.Transaction, error)
	ProcessRedemption(ctx context.Context, req model.RedeemRequest) (*model.Transaction, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions/earn", h.Earn)
	e.POST("/transactions/redeem", h.Redeem)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

func (h *TransactionHandler) Earn(ctx *xhttp.RequestCtx) {
	var req model.EarnRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.svc.ProcessEarn(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, tx)
}

func (h *TransactionHandler) Redeem(ctx *xhttp.RequestCtx) {
	var req model.RedeemRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.svc.ProcessRedemption(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, tx)
}
