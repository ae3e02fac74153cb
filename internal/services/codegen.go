package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nimasrn/loyalty-engine/internal/repository"
)

const (
	DefaultReferralCodeLength = 8
	referralAlphabet          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts           = 10
)

type CodeGenerator interface {
	NewCode() string
}

// UUIDCodeGenerator draws referral codes from random UUID bytes mapped onto
// upper-case letters and digits.
type UUIDCodeGenerator struct {
	Length int
}

func NewCodeGenerator(length int) *UUIDCodeGenerator {
	if length <= 0 || length > 16 {
		length = DefaultReferralCodeLength
	}
	return &UUIDCodeGenerator{Length: length}
}

func (g *UUIDCodeGenerator) NewCode() string {
	id := uuid.New()
	code := make([]byte, g.Length)
	for i := range code {
		code[i] = referralAlphabet[int(id[i])%len(referralAlphabet)]
	}
	return string(code)
}

// uniqueCode draws codes until one is unused. Callers still rely on the unique
// index, since another transaction may take the code before commit.
func uniqueCode(ctx context.Context, gen CodeGenerator, customers CustomerRepository) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := gen.NewCode()
		exists, err := customers.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", repository.ErrReferralCodeExhausted
}
