package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
)

type ProgramService interface {
	Create(ctx context.Context, req model.ProgramCreateRequest) (*model.LoyaltyProgram, error)
	Get(ctx context.Context, id int64) (*model.LoyaltyProgram, error)
	ListByBusiness(ctx context.Context, businessID int64) ([]*model.LoyaltyProgram, error)
	Update(ctx context.Context, id int64, req model.ProgramUpdateRequest) (*model.LoyaltyProgram, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type BusinessService interface {
	SetLoyaltyRate(ctx context.Context, id int64, rate float64) error
}

type EnrollmentService interface {
	Enroll(ctx context.Context, businessID int64, phone string, programID int64) (*model.Membership, error)
}

type RewardCatalog interface {
	Create(ctx context.Context, reward *model.Reward) (*model.Reward, error)
	ListByProgram(ctx context.Context, programID int64) ([]*model.Reward, error)
}

type ProgramHandler struct {
	programs   ProgramService
	businesses BusinessService
	enrollment EnrollmentService
	rewards    RewardCatalog
}

func RegisterProgramRoutes(e *router.Group, h *ProgramHandler) {
	e.POST("/programs", h.CreateProgram)
	e.GET("/programs/{id}", h.GetProgram)
	e.PUT("/programs/{id}", h.UpdateProgram)
	e.PUT("/programs/{id}/active", h.SetProgramActive)
	e.POST("/programs/{id}/enroll", h.Enroll)
	e.POST("/programs/{id}/rewards", h.CreateReward)
	e.GET("/programs/{id}/rewards", h.ListProgramRewards)
	e.GET("/businesses/{id}/programs", h.ListBusinessPrograms)
	e.PUT("/businesses/{id}/loyalty-rate", h.SetLoyaltyRate)
}

func NewProgramHandler(programs ProgramService, businesses BusinessService, enrollment EnrollmentService, rewards RewardCatalog) *ProgramHandler {
	return &ProgramHandler{
		programs:   programs,
		businesses: businesses,
		enrollment: enrollment,
		rewards:    rewards,
	}
}

type enrollRequest struct {
	BusinessID    int64  `json:"business_id"`
	CustomerPhone string `json:"customer_phone"`
}

type activeRequest struct {
	IsActive *bool `json:"is_active"`
}

type loyaltyRateRequest struct {
	LoyaltyRate float64 `json:"loyalty_rate"`
}

type listProgramsResponse struct {
	Items []*model.LoyaltyProgram `json:"items"`
	Total int                     `json:"total"`
}

func (h *ProgramHandler) CreateProgram(ctx *xhttp.RequestCtx) {
	var req model.ProgramCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	p, err := h.programs.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, p)
}

func (h *ProgramHandler) GetProgram(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	p, err := h.programs.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProgramHandler) UpdateProgram(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req model.ProgramUpdateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	p, err := h.programs.Update(ctx, id, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *ProgramHandler) SetProgramActive(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req activeRequest
	if err := readJSON(ctx, &req); err != nil || req.IsActive == nil {
		writeError(ctx, xhttp.StatusBadRequest, "is_active is required")
		return
	}

	if err := h.programs.SetActive(ctx, id, *req.IsActive); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *ProgramHandler) Enroll(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req enrollRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.BusinessID == 0 || req.CustomerPhone == "" {
		writeError(ctx, xhttp.StatusBadRequest, "business_id and customer_phone are required")
		return
	}

	m, err := h.enrollment.Enroll(ctx, req.BusinessID, req.CustomerPhone, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, m)
}

func (h *ProgramHandler) CreateReward(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var reward model.Reward
	if err := readJSON(ctx, &reward); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	reward.ProgramID = id

	created, err := h.rewards.Create(ctx, &reward)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, created)
}

func (h *ProgramHandler) ListProgramRewards(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	items, err := h.rewards.ListByProgram(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.Reward{}
	}
	writeJSON(ctx, xhttp.StatusOK, rewardsResponse{Items: items, Total: len(items)})
}

func (h *ProgramHandler) ListBusinessPrograms(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	items, err := h.programs.ListByBusiness(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.LoyaltyProgram{}
	}
	writeJSON(ctx, xhttp.StatusOK, listProgramsResponse{Items: items, Total: len(items)})
}

func (h *ProgramHandler) SetLoyaltyRate(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req loyaltyRateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := h.businesses.SetLoyaltyRate(ctx, id, req.LoyaltyRate); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"business_id": id, "loyalty_rate": req.LoyaltyRate})
}
