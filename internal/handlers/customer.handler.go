package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
)

type CustomerService interface {
	Points(ctx context.Context, phone string) (*model.CustomerPoints, error)
}

type MembershipLister interface {
	ListForBusiness(ctx context.Context, phone string, businessID int64) ([]*model.Membership, error)
}

type RewardFinder interface {
	Available(ctx context.Context, phone string, businessID int64) ([]*model.Reward, error)
}

type CustomerHandler struct {
	customers   CustomerService
	memberships MembershipLister
	rewards     RewardFinder
}

func RegisterCustomerRoutes(e *router.Group, h *CustomerHandler) {
	e.GET("/customers/{phone}/points", h.GetPoints)
	e.GET("/customers/{phone}/memberships", h.ListMemberships)
	e.GET("/customers/{phone}/rewards", h.ListAvailableRewards)
}

func NewCustomerHandler(customers CustomerService, memberships MembershipLister, rewards RewardFinder) *CustomerHandler {
	return &CustomerHandler{
		customers:   customers,
		memberships: memberships,
		rewards:     rewards,
	}
}

type membershipsResponse struct {
	Items []*model.Membership `json:"items"`
	Total int                 `json:"total"`
}

type rewardsResponse struct {
	Items []*model.Reward `json:"items"`
	Total int             `json:"total"`
}

func (h *CustomerHandler) GetPoints(ctx *xhttp.RequestCtx) {
	points, err := h.customers.Points(ctx, pathString(ctx, "phone"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, points)
}

func (h *CustomerHandler) ListMemberships(ctx *xhttp.RequestCtx) {
	businessID, err := queryInt64(ctx, "business_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	items, err := h.memberships.ListForBusiness(ctx, pathString(ctx, "phone"), businessID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.Membership{}
	}
	writeJSON(ctx, xhttp.StatusOK, membershipsResponse{Items: items, Total: len(items)})
}

func (h *CustomerHandler) ListAvailableRewards(ctx *xhttp.RequestCtx) {
	businessID, err := queryInt64(ctx, "business_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	items, err := h.rewards.Available(ctx, pathString(ctx, "phone"), businessID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	if items == nil {
		items = []*model.Reward{}
	}
	writeJSON(ctx, xhttp.StatusOK, rewardsResponse{Items: items, Total: len(items)})
}
