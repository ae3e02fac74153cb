package repository

import (
	"fmt"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

type ProgramEntity struct {
	ID                   int64             `db:"id"                     gorm:"primaryKey;autoIncrement;column:id"`
	BusinessID           int64             `db:"business_id"            gorm:"column:business_id;not null;index"`
	Name                 string            `db:"name"                   gorm:"column:name;not null"`
	Description          string            `db:"description"            gorm:"column:description"`
	ProgramType          string            `db:"program_type"           gorm:"column:program_type;not null"`
	EarnRate             float64           `db:"earn_rate"              gorm:"column:earn_rate;not null;default:1"`
	IsActive             bool              `db:"is_active"              gorm:"column:is_active;not null;default:true"`
	MembershipFee        *float64          `db:"membership_fee"         gorm:"column:membership_fee"`
	MembershipPeriodDays *int              `db:"membership_period_days" gorm:"column:membership_period_days"`
	Benefits             string            `db:"benefits"               gorm:"column:benefits"`
	Tiers                []TierLevelEntity `gorm:"foreignKey:ProgramID"`
	CreatedAt            time.Time         `db:"created_at"             gorm:"column:created_at;autoCreateTime"`
}

func (ProgramEntity) TableName() string {
	return "loyalty_programs"
}

type TierLevelEntity struct {
	ID         int64   `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	ProgramID  int64   `db:"program_id" gorm:"column:program_id;not null;index"`
	Name       string  `db:"name"       gorm:"column:name;not null"`
	MinPoints  int64   `db:"min_points" gorm:"column:min_points;not null"`
	Multiplier float64 `db:"multiplier" gorm:"column:multiplier;not null;default:1"`
	Benefits   string  `db:"benefits"   gorm:"column:benefits"`
}

func (TierLevelEntity) TableName() string {
	return "tier_levels"
}

func toProgramEntity(m *model.LoyaltyProgram) *ProgramEntity {
	if m == nil {
		return nil
	}
	e := &ProgramEntity{
		ID:          m.ID,
		BusinessID:  m.BusinessID,
		Name:        m.Name,
		Description: m.Description,
		ProgramType: string(m.Type()),
		EarnRate:    m.EarnRate,
		IsActive:    m.Active,
		CreatedAt:   m.CreatedAt,
	}
	switch v := m.Variant.(type) {
	case model.TieredProgram:
		e.Tiers = make([]TierLevelEntity, len(v.Tiers))
		for i, t := range v.Tiers {
			e.Tiers[i] = TierLevelEntity{
				ID:         t.ID,
				ProgramID:  m.ID,
				Name:       t.Name,
				MinPoints:  t.MinPoints,
				Multiplier: t.Multiplier,
				Benefits:   t.Benefits,
			}
		}
	case model.PaidProgram:
		fee, days := v.MembershipFee, v.PeriodDays()
		e.MembershipFee = &fee
		e.MembershipPeriodDays = &days
		e.Benefits = v.Benefits
	}
	return e
}

func toProgramModel(e *ProgramEntity) (*model.LoyaltyProgram, error) {
	if e == nil {
		return nil, nil
	}
	m := &model.LoyaltyProgram{
		ID:          e.ID,
		BusinessID:  e.BusinessID,
		Name:        e.Name,
		Description: e.Description,
		EarnRate:    e.EarnRate,
		Active:      e.IsActive,
		CreatedAt:   e.CreatedAt,
	}

	switch model.ProgramType(e.ProgramType) {
	case model.ProgramTypePoints:
		m.Variant = model.PointsProgram{}
	case model.ProgramTypeTiered:
		tiers := make([]model.TierLevel, len(e.Tiers))
		for i, t := range e.Tiers {
			tiers[i] = model.TierLevel{
				ID:         t.ID,
				ProgramID:  t.ProgramID,
				Name:       t.Name,
				MinPoints:  t.MinPoints,
				Multiplier: t.Multiplier,
				Benefits:   t.Benefits,
			}
		}
		m.Variant = model.TieredProgram{Tiers: tiers}
	case model.ProgramTypePaid:
		v := model.PaidProgram{Benefits: e.Benefits}
		if e.MembershipFee != nil {
			v.MembershipFee = *e.MembershipFee
		}
		if e.MembershipPeriodDays != nil {
			v.MembershipPeriodDays = *e.MembershipPeriodDays
		}
		m.Variant = v
	case model.ProgramTypeReferral:
		m.Variant = model.ReferralProgram{}
	case model.ProgramTypeCashback:
		m.Variant = model.CashbackProgram{}
	default:
		return nil, fmt.Errorf("program %d has unknown type %q", e.ID, e.ProgramType)
	}
	return m, nil
}
