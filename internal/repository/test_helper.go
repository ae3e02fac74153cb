package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table the engine owns, in dependency order.
func Entities() []interface{} {
	return []interface{}{
		&BusinessEntity{},
		&CustomerEntity{},
		&ProgramEntity{},
		&TierLevelEntity{},
		&MembershipEntity{},
		&ReferralEntity{},
		&RewardEntity{},
		&TransactionEntity{},
	}
}

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(Entities()...)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.New(db, db),
		rawDB: db,
	}
}

func seedBusiness(t *testing.T, db *testDB, rate float64) *BusinessEntity {
	b := &BusinessEntity{Name: "Coffee Corner", LoyaltyRate: rate}
	require.NoError(t, db.rawDB.Create(b).Error)
	return b
}

func seedCustomer(t *testing.T, db *testDB, phone string, points int64) *CustomerEntity {
	c := &CustomerEntity{PhoneNumber: phone, TotalPoints: points}
	require.NoError(t, db.rawDB.Create(c).Error)
	return c
}

func seedProgram(t *testing.T, db *testDB, businessID int64, programType string, rate float64) *ProgramEntity {
	p := &ProgramEntity{BusinessID: businessID, Name: programType + " program", ProgramType: programType, EarnRate: rate, IsActive: true}
	require.NoError(t, db.rawDB.Create(p).Error)
	return p
}

func inTx(t *testing.T, db *testDB, fn func(ctx context.Context) error) {
	require.NoError(t, db.WithinTransaction(context.Background(), fn))
}
