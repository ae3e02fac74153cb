package repository

import (
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

type CustomerEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	PhoneNumber  string    `db:"phone_number"  gorm:"column:phone_number;not null;uniqueIndex"`
	TotalPoints  int64     `db:"total_points"  gorm:"column:total_points;not null;default:0"`
	ReferralCode *string   `db:"referral_code" gorm:"column:referral_code;uniqueIndex"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:           e.ID,
		PhoneNumber:  e.PhoneNumber,
		TotalPoints:  e.TotalPoints,
		ReferralCode: e.ReferralCode,
		CreatedAt:    e.CreatedAt,
	}
}

type BusinessEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `db:"name"         gorm:"column:name;not null"`
	LoyaltyRate float64   `db:"loyalty_rate" gorm:"column:loyalty_rate;not null;default:0.01"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (BusinessEntity) TableName() string {
	return "businesses"
}

func toBusinessEntity(m *model.Business) *BusinessEntity {
	if m == nil {
		return nil
	}
	return &BusinessEntity{
		ID:          m.ID,
		Name:        m.Name,
		LoyaltyRate: m.LoyaltyRate,
		CreatedAt:   m.CreatedAt,
	}
}

func toBusinessModel(e *BusinessEntity) *model.Business {
	if e == nil {
		return nil
	}
	return &model.Business{
		ID:          e.ID,
		Name:        e.Name,
		LoyaltyRate: e.LoyaltyRate,
		CreatedAt:   e.CreatedAt,
	}
}
