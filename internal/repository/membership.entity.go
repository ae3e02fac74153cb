package repository

import (
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

type MembershipEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID      int64      `db:"customer_id"      gorm:"column:customer_id;not null;uniqueIndex:idx_membership_customer_program"`
	ProgramID       int64      `db:"program_id"       gorm:"column:program_id;not null;uniqueIndex:idx_membership_customer_program;index"`
	Points          int64      `db:"points"           gorm:"column:points;not null;default:0"`
	CurrentTierID   *int64     `db:"current_tier_id"  gorm:"column:current_tier_id"`
	IsPaidMember    bool       `db:"is_paid_member"   gorm:"column:is_paid_member;not null;default:false"`
	MembershipStart *time.Time `db:"membership_start" gorm:"column:membership_start"`
	MembershipEnd   *time.Time `db:"membership_end"   gorm:"column:membership_end"`
	JoinedAt        time.Time  `db:"joined_at"        gorm:"column:joined_at;autoCreateTime"`
}

func (MembershipEntity) TableName() string {
	return "customer_memberships"
}

func toMembershipModel(e *MembershipEntity) *model.Membership {
	if e == nil {
		return nil
	}
	return &model.Membership{
		ID:              e.ID,
		CustomerID:      e.CustomerID,
		ProgramID:       e.ProgramID,
		Points:          e.Points,
		CurrentTierID:   e.CurrentTierID,
		IsPaidMember:    e.IsPaidMember,
		MembershipStart: e.MembershipStart,
		MembershipEnd:   e.MembershipEnd,
		JoinedAt:        e.JoinedAt,
	}
}

func toMembershipModels(entities []*MembershipEntity) []*model.Membership {
	if entities == nil {
		return nil
	}
	models := make([]*model.Membership, len(entities))
	for i, e := range entities {
		models[i] = toMembershipModel(e)
	}
	return models
}

type ReferralEntity struct {
	ID              int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ReferrerID      int64     `db:"referrer_id"      gorm:"column:referrer_id;not null;index"`
	ReferredID      int64     `db:"referred_id"      gorm:"column:referred_id;not null;index"`
	BusinessID      int64     `db:"business_id"      gorm:"column:business_id;not null"`
	ProgramID       int64     `db:"program_id"       gorm:"column:program_id;not null"`
	PointsAwarded   int64     `db:"points_awarded"   gorm:"column:points_awarded;not null;default:0"`
	CashbackAwarded float64   `db:"cashback_awarded" gorm:"column:cashback_awarded;not null;default:0"`
	CreatedAt       time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (ReferralEntity) TableName() string {
	return "referrals"
}

func toReferralEntity(m *model.Referral) *ReferralEntity {
	if m == nil {
		return nil
	}
	return &ReferralEntity{
		ID:              m.ID,
		ReferrerID:      m.ReferrerID,
		ReferredID:      m.ReferredID,
		BusinessID:      m.BusinessID,
		ProgramID:       m.ProgramID,
		PointsAwarded:   m.PointsAwarded,
		CashbackAwarded: m.CashbackAwarded,
		CreatedAt:       m.CreatedAt,
	}
}

func toReferralModel(e *ReferralEntity) *model.Referral {
	if e == nil {
		return nil
	}
	return &model.Referral{
		ID:              e.ID,
		ReferrerID:      e.ReferrerID,
		ReferredID:      e.ReferredID,
		BusinessID:      e.BusinessID,
		ProgramID:       e.ProgramID,
		PointsAwarded:   e.PointsAwarded,
		CashbackAwarded: e.CashbackAwarded,
		CreatedAt:       e.CreatedAt,
	}
}

type RewardEntity struct {
	ID             int64  `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	ProgramID      int64  `db:"program_id"      gorm:"column:program_id;not null;index"`
	Name           string `db:"name"            gorm:"column:name;not null"`
	Description    string `db:"description"     gorm:"column:description"`
	PointsRequired int64  `db:"points_required" gorm:"column:points_required;not null"`
	IsActive       bool   `db:"is_active"       gorm:"column:is_active;not null"`
	StockLimit     *int   `db:"stock_limit"     gorm:"column:stock_limit"`
}

func (RewardEntity) TableName() string {
	return "rewards"
}

func toRewardEntity(m *model.Reward) *RewardEntity {
	if m == nil {
		return nil
	}
	return &RewardEntity{
		ID:             m.ID,
		ProgramID:      m.ProgramID,
		Name:           m.Name,
		Description:    m.Description,
		PointsRequired: m.PointsRequired,
		IsActive:       m.IsActive,
		StockLimit:     m.StockLimit,
	}
}

func toRewardModel(e *RewardEntity) *model.Reward {
	if e == nil {
		return nil
	}
	return &model.Reward{
		ID:             e.ID,
		ProgramID:      e.ProgramID,
		Name:           e.Name,
		Description:    e.Description,
		PointsRequired: e.PointsRequired,
		IsActive:       e.IsActive,
		StockLimit:     e.StockLimit,
	}
}

func toRewardModels(entities []*RewardEntity) []*model.Reward {
	if entities == nil {
		return nil
	}
	models := make([]*model.Reward, len(entities))
	for i, e := range entities {
		models[i] = toRewardModel(e)
	}
	return models
}
