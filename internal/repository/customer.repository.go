package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrReferralCodeExhausted = errors.New("could not generate a unique referral code")
)

// maxCodeAttempts bounds regeneration when a generated referral code collides.
const maxCodeAttempts = 10

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

// GetOrCreateByPhone returns the customer row for phone locked FOR UPDATE,
// inserting it with a zero balance and a fresh referral code when absent.
// The boolean is true when the row was created by this call.
func (r *CustomerRepository) GetOrCreateByPhone(ctx context.Context, phone string, newCode func() string) (*model.Customer, bool, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		existing, err := r.LockByPhone(ctx, phone)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, false, err
		}

		code := newCode()
		entity := &CustomerEntity{
			PhoneNumber:  phone,
			ReferralCode: &code,
		}
		result := r.Write(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(entity)
		if result.Error != nil {
			return nil, false, result.Error
		}
		if result.RowsAffected == 1 {
			created, err := r.LockByPhone(ctx, phone)
			if err != nil {
				return nil, false, err
			}
			return created, true, nil
		}
		// Either a concurrent insert won the phone number, which the next
		// lookup returns, or the referral code collided and a new one is drawn.
	}

	return nil, false, fmt.Errorf("%w: phone=%s", ErrReferralCodeExhausted, phone)
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).
		Where("phone_number = ?", phone).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityCustomer)
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) GetByReferralCode(ctx context.Context, code string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).
		Where("referral_code = ?", code).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityCustomer)
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// LockByPhone reads the customer with SELECT ... FOR UPDATE. Callers hold the
// lock until their transaction ends.
func (r *CustomerRepository) LockByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone_number = ?", phone).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityCustomer)
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) LockByID(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NewNotFound(model.EntityCustomer)
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// AddPoints applies delta to the legacy aggregate in a single UPDATE.
func (r *CustomerRepository) AddPoints(ctx context.Context, id int64, delta int64) error {
	result := r.Write(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", id).
		Update("total_points", gorm.Expr("total_points + ?", delta))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.NewNotFound(model.EntityCustomer)
	}
	return nil
}

func (r *CustomerRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&CustomerEntity{}).
		Where("referral_code = ?", code).
		Count(&count).
		Error
	return count > 0, err
}

// SetReferralCode assigns code only when the customer has none yet.
func (r *CustomerRepository) SetReferralCode(ctx context.Context, id int64, code string) error {
	result := r.Write(ctx).
		Model(&CustomerEntity{}).
		Where("id = ? AND referral_code IS NULL", id).
		Update("referral_code", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("customer %d already has a referral code", id)
	}
	return nil
}
