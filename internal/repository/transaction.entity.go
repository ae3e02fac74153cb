package repository

import (
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

type TransactionEntity struct {
	ID                int64     `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Reference         string    `db:"reference"          gorm:"column:reference;not null;uniqueIndex"`
	BusinessID        int64     `db:"business_id"        gorm:"column:business_id;not null;index"`
	CustomerID        int64     `db:"customer_id"        gorm:"column:customer_id;not null;index"`
	ProgramID         *int64    `db:"program_id"         gorm:"column:program_id;index"`
	AmountSpent       float64   `db:"amount_spent"       gorm:"column:amount_spent;not null;default:0"`
	PointsEarned      int64     `db:"points_earned"      gorm:"column:points_earned;not null;default:0"`
	CashbackAmount    float64   `db:"cashback_amount"    gorm:"column:cashback_amount;not null;default:0"`
	TransactionType   string    `db:"transaction_type"   gorm:"column:transaction_type;not null"`
	RewardDescription string    `db:"reward_description" gorm:"column:reward_description"`
	TierID            *int64    `db:"tier_id"            gorm:"column:tier_id"`
	ReferralID        *int64    `db:"referral_id"        gorm:"column:referral_id"`
	CreatedAt         time.Time `db:"created_at"         gorm:"column:created_at;autoCreateTime;index"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:                m.ID,
		Reference:         m.Reference,
		BusinessID:        m.BusinessID,
		CustomerID:        m.CustomerID,
		ProgramID:         m.ProgramID,
		AmountSpent:       m.AmountSpent,
		PointsEarned:      m.PointsEarned,
		CashbackAmount:    m.CashbackAmount,
		TransactionType:   string(m.Type),
		RewardDescription: m.RewardDescription,
		TierID:            m.TierID,
		ReferralID:        m.ReferralID,
		CreatedAt:         m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                e.ID,
		Reference:         e.Reference,
		BusinessID:        e.BusinessID,
		CustomerID:        e.CustomerID,
		ProgramID:         e.ProgramID,
		AmountSpent:       e.AmountSpent,
		PointsEarned:      e.PointsEarned,
		CashbackAmount:    e.CashbackAmount,
		Type:              model.TransactionType(e.TransactionType),
		RewardDescription: e.RewardDescription,
		TierID:            e.TierID,
		ReferralID:        e.ReferralID,
		CreatedAt:         e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
