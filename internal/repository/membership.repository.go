package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	*pg.DB
}

func NewMembershipRepository(db *pg.DB) *MembershipRepository {
	return &MembershipRepository{
		db,
	}
}

// GetOrCreate inserts a zero-balance membership unless one exists for the pair,
// then returns the row locked FOR UPDATE. An existing row is returned unchanged.
func (r *MembershipRepository) GetOrCreate(ctx context.Context, customerID, programID int64) (*model.Membership, error) {
	entity := &MembershipEntity{
		CustomerID: customerID,
		ProgramID:  programID,
	}
	err := r.Write(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "program_id"}},
			DoNothing: true,
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}
	return r.Lock(ctx, customerID, programID)
}

// Lock reads the membership for (customer, program) with SELECT ... FOR UPDATE.
func (r *MembershipRepository) Lock(ctx context.Context, customerID, programID int64) (*model.Membership, error) {
	var entity MembershipEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ? AND program_id = ?", customerID, programID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityMembership)
		}
		return nil, err
	}
	return toMembershipModel(&entity), nil
}

func (r *MembershipRepository) Get(ctx context.Context, customerID, programID int64) (*model.Membership, error) {
	var entity MembershipEntity
	err := r.Read(ctx).
		Where("customer_id = ? AND program_id = ?", customerID, programID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityMembership)
		}
		return nil, err
	}
	return toMembershipModel(&entity), nil
}

// AddPoints applies delta guarded so the balance cannot drop below zero.
// A guarded-out update reports ErrInsufficientBalance.
func (r *MembershipRepository) AddPoints(ctx context.Context, id int64, delta int64) error {
	result := r.Write(ctx).
		Model(&MembershipEntity{}).
		Where("id = ? AND points + ? >= 0", id, delta).
		Update("points", gorm.Expr("points + ?", delta))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrInsufficientBalance
	}
	return nil
}

func (r *MembershipRepository) SetTier(ctx context.Context, id int64, tierID *int64) error {
	var value interface{}
	if tierID != nil {
		value = *tierID
	}
	return r.Write(ctx).
		Model(&MembershipEntity{}).
		Where("id = ?", id).
		Update("current_tier_id", value).
		Error
}

func (r *MembershipRepository) SetPaidWindow(ctx context.Context, id int64, start, end time.Time) error {
	result := r.Write(ctx).
		Model(&MembershipEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_paid_member":   true,
			"membership_start": start,
			"membership_end":   end,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.NewNotFound(model.EntityMembership)
	}
	return nil
}

// ListForBusiness returns the customer's memberships in programs owned by businessID.
func (r *MembershipRepository) ListForBusiness(ctx context.Context, customerID, businessID int64) ([]*model.Membership, error) {
	var entities []*MembershipEntity
	err := r.Read(ctx).
		Joins("JOIN loyalty_programs ON loyalty_programs.id = customer_memberships.program_id").
		Where("customer_memberships.customer_id = ? AND loyalty_programs.business_id = ?", customerID, businessID).
		Order("customer_memberships.id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toMembershipModels(entities), nil
}
