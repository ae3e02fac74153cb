package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
)

type ReferralService interface {
	ProcessReferral(ctx context.Context, req model.ReferralRequest) (*model.Referral, error)
	ReferralCode(ctx context.Context, phone string) (string, error)
	CustomerByCode(ctx context.Context, code string) (*model.Customer, error)
}

type ReferralHandler struct {
	svc ReferralService
}

func RegisterReferralRoutes(e *router.Group, h *ReferralHandler) {
	e.POST("/referrals", h.CreateReferral)
	e.GET("/customers/{phone}/referral-code", h.GetReferralCode)
	e.GET("/referral-codes/{code}", h.ResolveReferralCode)
}

func NewReferralHandler(svc ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

type referralCodeResponse struct {
	PhoneNumber  string `json:"phone_number"`
	ReferralCode string `json:"referral_code"`
}

func (h *ReferralHandler) CreateReferral(ctx *xhttp.RequestCtx) {
	var req model.ReferralRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	ref, err := h.svc.ProcessReferral(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, ref)
}

func (h *ReferralHandler) GetReferralCode(ctx *xhttp.RequestCtx) {
	phone := pathString(ctx, "phone")
	code, err := h.svc.ReferralCode(ctx, phone)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, referralCodeResponse{PhoneNumber: phone, ReferralCode: code})
}

func (h *ReferralHandler) ResolveReferralCode(ctx *xhttp.RequestCtx) {
	c, err := h.svc.CustomerByCode(ctx, pathString(ctx, "code"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, c)
}
