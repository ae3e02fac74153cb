package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"gorm.io/gorm"
)

type ProgramRepository struct {
	*pg.DB
}

func NewProgramRepository(db *pg.DB) *ProgramRepository {
	return &ProgramRepository{
		db,
	}
}

// Create stores the program and, for tiered programs, its tier levels.
func (r *ProgramRepository) Create(ctx context.Context, p *model.LoyaltyProgram) (*model.LoyaltyProgram, error) {
	entity := toProgramEntity(p)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toProgramModel(entity)
}

func (r *ProgramRepository) Get(ctx context.Context, id int64) (*model.LoyaltyProgram, error) {
	var entity ProgramEntity
	err := r.Read(ctx).
		Preload("Tiers").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityProgram)
		}
		return nil, err
	}
	return toProgramModel(&entity)
}

func (r *ProgramRepository) ListByBusiness(ctx context.Context, businessID int64) ([]*model.LoyaltyProgram, error) {
	var entities []*ProgramEntity
	err := r.Read(ctx).
		Preload("Tiers").
		Where("business_id = ?", businessID).
		Order("id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	programs := make([]*model.LoyaltyProgram, 0, len(entities))
	for _, e := range entities {
		p, err := toProgramModel(e)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// Update writes the mutable columns of p. Tier levels and the program type
// are not touched.
func (r *ProgramRepository) Update(ctx context.Context, p *model.LoyaltyProgram) error {
	e := toProgramEntity(p)
	result := r.Write(ctx).
		Model(&ProgramEntity{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":                   e.Name,
			"description":            e.Description,
			"earn_rate":              e.EarnRate,
			"membership_fee":         e.MembershipFee,
			"membership_period_days": e.MembershipPeriodDays,
			"benefits":               e.Benefits,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.NewNotFound(model.EntityProgram)
	}
	return nil
}

func (r *ProgramRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result := r.Write(ctx).
		Model(&ProgramEntity{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.NewNotFound(model.EntityProgram)
	}
	return nil
}
