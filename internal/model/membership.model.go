package model

import (
	"errors"
	"time"
)

type Membership struct {
	ID              int64      `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	ProgramID       int64      `json:"program_id"`
	Points          int64      `json:"points"`
	CurrentTierID   *int64     `json:"current_tier_id,omitempty"`
	IsPaidMember    bool       `json:"is_paid_member"`
	MembershipStart *time.Time `json:"membership_start,omitempty"`
	MembershipEnd   *time.Time `json:"membership_end,omitempty"`
	JoinedAt        time.Time  `json:"joined_at"`
}

// PaidActiveAt reports whether the paid window is open at now. The end is exclusive.
func (m *Membership) PaidActiveAt(now time.Time) bool {
	return m.IsPaidMember && m.MembershipEnd != nil && now.Before(*m.MembershipEnd)
}

type Referral struct {
	ID              int64     `json:"id"`
	ReferrerID      int64     `json:"referrer_id"`
	ReferredID      int64     `json:"referred_id"`
	BusinessID      int64     `json:"business_id"`
	ProgramID       int64     `json:"program_id"`
	PointsAwarded   int64     `json:"points_awarded"`
	CashbackAwarded float64   `json:"cashback_awarded"`
	CreatedAt       time.Time `json:"created_at"`
}

type ReferralRequest struct {
	ReferrerPhone string `json:"referrer_phone"`
	ReferredPhone string `json:"referred_phone"`
	BusinessID    int64  `json:"business_id"`
	ProgramID     int64  `json:"program_id"`
}

func (r ReferralRequest) Validate() error {
	if r.ReferrerPhone == "" || r.ReferredPhone == "" {
		return errors.New("referrer_phone and referred_phone are required")
	}
	if r.BusinessID == 0 || r.ProgramID == 0 {
		return errors.New("business_id and program_id are required")
	}
	return nil
}

// Reward is a catalog entry. StockLimit is informational and never decremented.
type Reward struct {
	ID             int64  `json:"id"`
	ProgramID      int64  `json:"program_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int64  `json:"points_required"`
	IsActive       bool   `json:"is_active"`
	StockLimit     *int   `json:"stock_limit,omitempty"`
}
