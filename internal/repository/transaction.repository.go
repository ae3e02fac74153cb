package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionRepository only appends and reads; ledger rows are never updated.
type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if entity.Reference == "" {
		entity.Reference = uuid.NewString()
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).
		Where("reference = ?", reference).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// ListRecentByCustomer returns the newest entries first.
func (r *TransactionRepository) ListRecentByCustomer(ctx context.Context, customerID int64, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

type TransactionFilter struct {
	CustomerID *int64
	BusinessID *int64
	ProgramID  *int64
	Type       *model.TransactionType
	Limit      int
	Offset     int
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).Model(&TransactionEntity{})
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.BusinessID != nil {
		q = q.Where("business_id = ?", *f.BusinessID)
	}
	if f.ProgramID != nil {
		q = q.Where("program_id = ?", *f.ProgramID)
	}
	if f.Type != nil {
		q = q.Where("transaction_type = ?", string(*f.Type))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	var entities []*TransactionEntity
	err := q.Order("id DESC").Limit(f.Limit).Offset(f.Offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toTransactionModels(entities), total, nil
}
