package model

import "time"

type Customer struct {
	ID           int64     `json:"id"`
	PhoneNumber  string    `json:"phone_number"`
	TotalPoints  int64     `json:"total_points"`
	ReferralCode *string   `json:"referral_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CustomerPoints is the aggregate balance plus the latest ledger entries.
type CustomerPoints struct {
	Customer           *Customer      `json:"customer"`
	TotalPoints        int64          `json:"total_points"`
	RecentTransactions []*Transaction `json:"recent_transactions"`
}

type Business struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	LoyaltyRate float64   `json:"loyalty_rate"`
	CreatedAt   time.Time `json:"created_at"`
}
