package fixtures

import (
	"github.com/nimasrn/loyalty-engine/internal/model"
)

const (
	PhoneAlice = "+15550000001"
	PhoneBob   = "+15550000002"
	PhoneCarol = "+15550000003"
)

var (
	ValidPhoneNumbers = []string{
		PhoneAlice,
		PhoneBob,
		PhoneCarol,
		"+4412345678",
		"+81312345678",
	}

	InvalidAmounts = []float64{0, -1, -0.01}
)

func PointsProgram(businessID int64, rate float64) *model.LoyaltyProgram {
	return &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       "Coffee points",
		EarnRate:   rate,
		Active:     true,
		Variant:    model.PointsProgram{},
	}
}

// TieredProgram has Bronze at 0 (x1), Silver at 100 (x1.5) and Gold at 500 (x2).
func TieredProgram(businessID int64) *model.LoyaltyProgram {
	return &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       "Status club",
		EarnRate:   1,
		Active:     true,
		Variant: model.TieredProgram{Tiers: []model.TierLevel{
			{Name: "Bronze", MinPoints: 0, Multiplier: 1},
			{Name: "Silver", MinPoints: 100, Multiplier: 1.5},
			{Name: "Gold", MinPoints: 500, Multiplier: 2},
		}},
	}
}

func PaidProgram(businessID int64, fee float64) *model.LoyaltyProgram {
	return &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       "Plus membership",
		EarnRate:   2,
		Active:     true,
		Variant:    model.PaidProgram{MembershipFee: fee, MembershipPeriodDays: 30, Benefits: "double points"},
	}
}

func ReferralProgram(businessID int64, award float64) *model.LoyaltyProgram {
	return &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       "Bring a friend",
		EarnRate:   award,
		Active:     true,
		Variant:    model.ReferralProgram{},
	}
}

func CashbackProgram(businessID int64, percent float64) *model.LoyaltyProgram {
	return &model.LoyaltyProgram{
		BusinessID: businessID,
		Name:       "Cashback",
		EarnRate:   percent,
		Active:     true,
		Variant:    model.CashbackProgram{},
	}
}

func EarnRequest(businessID int64, phone string, amount float64, programID *int64) model.EarnRequest {
	return model.EarnRequest{
		BusinessID:    businessID,
		CustomerPhone: phone,
		AmountSpent:   amount,
		ProgramID:     programID,
	}
}

func RedeemRequest(businessID int64, phone string, points int64, reward string, programID *int64) model.RedeemRequest {
	return model.RedeemRequest{
		BusinessID:        businessID,
		CustomerPhone:     phone,
		Points:            points,
		RewardDescription: reward,
		ProgramID:         programID,
	}
}
