package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidProgramType  = errors.New("invalid program type")
	ErrSelfReferral        = errors.New("customer cannot refer themselves")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrProgramInactive     = errors.New("loyalty program is not active")
	ErrInvalidRequest      = errors.New("invalid request")
)

type Entity string

const (
	EntityBusiness   Entity = "business"
	EntityCustomer   Entity = "customer"
	EntityProgram    Entity = "program"
	EntityMembership Entity = "membership"
	EntityReferral   Entity = "referral"
	EntityReward     Entity = "reward"
)

type NotFoundError struct {
	Entity Entity
}

func NewNotFound(entity Entity) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

func (e *NotFoundError) Error() string {
	return string(e.Entity) + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InsufficientBalanceError reports the balance seen under lock and the amount asked for.
type InsufficientBalanceError struct {
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("not enough points: customer has %d points, but %d were requested", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

type InvalidProgramTypeError struct {
	Expected []ProgramType
	Actual   ProgramType
}

func (e *InvalidProgramTypeError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, t := range e.Expected {
		expected[i] = string(t)
	}
	return fmt.Sprintf("invalid program type: expected %s, got %s", strings.Join(expected, " or "), e.Actual)
}

func (e *InvalidProgramTypeError) Unwrap() error {
	return ErrInvalidProgramType
}
