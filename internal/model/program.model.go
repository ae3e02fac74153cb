package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ProgramType string

const (
	ProgramTypePoints   ProgramType = "points"
	ProgramTypeTiered   ProgramType = "tiered"
	ProgramTypePaid     ProgramType = "paid"
	ProgramTypeReferral ProgramType = "referral"
	ProgramTypeCashback ProgramType = "cashback"
)

// DefaultMembershipPeriodDays is used when a paid program does not set its own period.
const DefaultMembershipPeriodDays = 365

type LoyaltyProgram struct {
	ID          int64
	BusinessID  int64
	Name        string
	Description string
	// EarnRate is points per currency unit for points programs, the base rate for
	// tiered and paid programs, the flat award for referral programs and a
	// percentage for cashback programs.
	EarnRate  float64
	Active    bool
	Variant   ProgramVariant
	CreatedAt time.Time
}

type programJSON struct {
	ID                   int64       `json:"id"`
	BusinessID           int64       `json:"business_id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Type                 ProgramType `json:"program_type"`
	EarnRate             float64     `json:"earn_rate"`
	Active               bool        `json:"is_active"`
	MembershipFee        float64     `json:"membership_fee,omitempty"`
	MembershipPeriodDays int         `json:"membership_period_days,omitempty"`
	Benefits             string      `json:"benefits,omitempty"`
	Tiers                []TierLevel `json:"tiers,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

func (p LoyaltyProgram) MarshalJSON() ([]byte, error) {
	out := programJSON{
		ID:          p.ID,
		BusinessID:  p.BusinessID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type(),
		EarnRate:    p.EarnRate,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
	switch v := p.Variant.(type) {
	case TieredProgram:
		out.Tiers = v.Tiers
	case PaidProgram:
		out.MembershipFee = v.MembershipFee
		out.MembershipPeriodDays = v.PeriodDays()
		out.Benefits = v.Benefits
	}
	return json.Marshal(out)
}

func (p LoyaltyProgram) Type() ProgramType {
	if p.Variant == nil {
		return ""
	}
	return p.Variant.ProgramType()
}

// ProgramVariant carries the fields that only one kind of program has.
// The set of implementations is closed to this package.
type ProgramVariant interface {
	ProgramType() ProgramType
	sealed()
}

type PointsProgram struct{}

type TieredProgram struct {
	Tiers []TierLevel
}

type PaidProgram struct {
	MembershipFee        float64
	MembershipPeriodDays int
	Benefits             string
}

type ReferralProgram struct{}

type CashbackProgram struct{}

func (PointsProgram) ProgramType() ProgramType   { return ProgramTypePoints }
func (TieredProgram) ProgramType() ProgramType   { return ProgramTypeTiered }
func (PaidProgram) ProgramType() ProgramType     { return ProgramTypePaid }
func (ReferralProgram) ProgramType() ProgramType { return ProgramTypeReferral }
func (CashbackProgram) ProgramType() ProgramType { return ProgramTypeCashback }

func (PointsProgram) sealed()   {}
func (TieredProgram) sealed()   {}
func (PaidProgram) sealed()     {}
func (ReferralProgram) sealed() {}
func (CashbackProgram) sealed() {}

func (p PaidProgram) PeriodDays() int {
	if p.MembershipPeriodDays <= 0 {
		return DefaultMembershipPeriodDays
	}
	return p.MembershipPeriodDays
}

type TierLevel struct {
	ID         int64   `json:"id"`
	ProgramID  int64   `json:"program_id"`
	Name       string  `json:"name"`
	MinPoints  int64   `json:"min_points"`
	Multiplier float64 `json:"multiplier"`
	Benefits   string  `json:"benefits,omitempty"`
}

type ProgramCreateRequest struct {
	BusinessID           int64       `json:"business_id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	Type                 ProgramType `json:"program_type"`
	EarnRate             float64     `json:"earn_rate"`
	MembershipFee        float64     `json:"membership_fee"`
	MembershipPeriodDays int         `json:"membership_period_days"`
	Benefits             string      `json:"benefits"`
	Tiers                []TierLevel `json:"tiers"`
}

func (p ProgramCreateRequest) Validate() error {
	if p.BusinessID == 0 {
		return errors.New("business_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.EarnRate <= 0 {
		return errors.New("earn_rate must be positive")
	}
	switch p.Type {
	case ProgramTypePoints, ProgramTypeReferral, ProgramTypeCashback:
	case ProgramTypeTiered:
		seen := make(map[int64]bool, len(p.Tiers))
		for _, t := range p.Tiers {
			if t.MinPoints < 0 || t.Multiplier <= 0 {
				return errors.New("tiers need a non-negative min_points and a positive multiplier")
			}
			if seen[t.MinPoints] {
				return fmt.Errorf("duplicate tier threshold %d", t.MinPoints)
			}
			seen[t.MinPoints] = true
		}
	case ProgramTypePaid:
		if p.MembershipFee < 0 || p.MembershipPeriodDays < 0 {
			return errors.New("membership fee and period cannot be negative")
		}
	default:
		return fmt.Errorf("unknown program type %q", p.Type)
	}
	return nil
}

// Variant builds the type-specific part of a program from the request.
func (p ProgramCreateRequest) Variant() ProgramVariant {
	switch p.Type {
	case ProgramTypeTiered:
		return TieredProgram{Tiers: p.Tiers}
	case ProgramTypePaid:
		return PaidProgram{
			MembershipFee:        p.MembershipFee,
			MembershipPeriodDays: p.MembershipPeriodDays,
			Benefits:             p.Benefits,
		}
	case ProgramTypeReferral:
		return ReferralProgram{}
	case ProgramTypeCashback:
		return CashbackProgram{}
	default:
		return PointsProgram{}
	}
}

// ProgramUpdateRequest changes the mutable fields of a program. Unset fields
// keep their value. The program type and tier ladder are fixed at creation.
type ProgramUpdateRequest struct {
	Name                 *string  `json:"name"`
	Description          *string  `json:"description"`
	EarnRate             *float64 `json:"earn_rate"`
	MembershipFee        *float64 `json:"membership_fee"`
	MembershipPeriodDays *int     `json:"membership_period_days"`
	Benefits             *string  `json:"benefits"`
}

// Apply checks the request against p and copies the set fields into it.
// p is left untouched when an error is returned.
func (r ProgramUpdateRequest) Apply(p *LoyaltyProgram) error {
	if r.Name != nil && *r.Name == "" {
		return errors.New("name cannot be empty")
	}
	if r.EarnRate != nil && !(*r.EarnRate > 0) {
		return errors.New("earn_rate must be positive")
	}
	paid, isPaid := p.Variant.(PaidProgram)
	if !isPaid && (r.MembershipFee != nil || r.MembershipPeriodDays != nil || r.Benefits != nil) {
		return fmt.Errorf("membership fields only apply to paid programs, not %q", p.Type())
	}
	if (r.MembershipFee != nil && *r.MembershipFee < 0) || (r.MembershipPeriodDays != nil && *r.MembershipPeriodDays < 0) {
		return errors.New("membership fee and period cannot be negative")
	}

	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.EarnRate != nil {
		p.EarnRate = *r.EarnRate
	}
	if isPaid {
		if r.MembershipFee != nil {
			paid.MembershipFee = *r.MembershipFee
		}
		if r.MembershipPeriodDays != nil {
			paid.MembershipPeriodDays = *r.MembershipPeriodDays
		}
		if r.Benefits != nil {
			paid.Benefits = *r.Benefits
		}
		p.Variant = paid
	}
	return nil
}
