package model

import (
	"errors"
	"time"
)

type TransactionType string

const (
	TransactionTypeEarn       TransactionType = "earn"
	TransactionTypeRedemption TransactionType = "redemption"
	TransactionTypeReferral   TransactionType = "referral"
	TransactionTypeCashback   TransactionType = "cashback"
)

// Transaction is an append-only ledger row. PointsEarned is negative for redemptions.
type Transaction struct {
	ID                int64           `json:"id"`
	Reference         string          `json:"reference"`
	BusinessID        int64           `json:"business_id"`
	CustomerID        int64           `json:"customer_id"`
	ProgramID         *int64          `json:"program_id,omitempty"`
	AmountSpent       float64         `json:"amount_spent"`
	PointsEarned      int64           `json:"points_earned"`
	CashbackAmount    float64         `json:"cashback_amount"`
	Type              TransactionType `json:"transaction_type"`
	RewardDescription string          `json:"reward_description,omitempty"`
	TierID            *int64          `json:"tier_id,omitempty"`
	ReferralID        *int64          `json:"referral_id,omitempty"`
	CreatedAt         time.Time       `json:"timestamp"`
}

type EarnRequest struct {
	BusinessID    int64   `json:"business_id"`
	CustomerPhone string  `json:"customer_phone"`
	AmountSpent   float64 `json:"amount_spent"`
	ProgramID     *int64  `json:"program_id,omitempty"`
}

func (r EarnRequest) Validate() error {
	if r.BusinessID == 0 {
		return errors.New("business_id is required")
	}
	if r.CustomerPhone == "" {
		return errors.New("customer_phone is required")
	}
	return nil
}

type RedeemRequest struct {
	BusinessID        int64  `json:"business_id"`
	CustomerPhone     string `json:"customer_phone"`
	Points            int64  `json:"points"`
	RewardDescription string `json:"reward_description"`
	ProgramID         *int64 `json:"program_id,omitempty"`
}

func (r RedeemRequest) Validate() error {
	if r.BusinessID == 0 {
		return errors.New("business_id is required")
	}
	if r.CustomerPhone == "" {
		return errors.New("customer_phone is required")
	}
	return nil
}
