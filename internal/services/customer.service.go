package services

import (
	"context"

	"github.com/nimasrn/loyalty-engine/internal/model"
)

const recentTransactionLimit = 5

type CustomerService struct {
	customers    CustomerRepository
	transactions TransactionRepository
}

func NewCustomerService(customers CustomerRepository, transactions TransactionRepository) *CustomerService {
	return &CustomerService{
		customers:    customers,
		transactions: transactions,
	}
}

// Points returns the customer's legacy total with their latest ledger entries.
func (s *CustomerService) Points(ctx context.Context, phone string) (*model.CustomerPoints, error) {
	customer, err := s.customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	recent, err := s.transactions.ListRecentByCustomer(ctx, customer.ID, recentTransactionLimit)
	if err != nil {
		return nil, err
	}
	return &model.CustomerPoints{
		Customer:           customer,
		TotalPoints:        customer.TotalPoints,
		RecentTransactions: recent,
	}, nil
}
