package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/nimasrn/loyalty-engine/internal/repository"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
	"github.com/nimasrn/loyalty-engine/pkg/redis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB returns an in-memory sqlite database with every table migrated.
func SetupTestDB(t *testing.T) (*pg.DB, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return pg.New(db, db), db
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	// adapters are cached by name for the life of the process
	connName := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "test:", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func CreateTestBusiness(t *testing.T, db *pg.DB, name string, rate float64) *model.Business {
	t.Helper()
	b, err := repository.NewBusinessRepository(db).Create(context.Background(), &model.Business{Name: name, LoyaltyRate: rate})
	require.NoError(t, err)
	return b
}

func CreateTestProgram(t *testing.T, db *pg.DB, p *model.LoyaltyProgram) *model.LoyaltyProgram {
	t.Helper()
	repo := repository.NewProgramRepository(db)
	created, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	return got
}

func CreateTestReward(t *testing.T, db *pg.DB, programID int64, name string, points int64) *model.Reward {
	t.Helper()
	r, err := repository.NewRewardRepository(db).Create(context.Background(), &model.Reward{
		ProgramID:      programID,
		Name:           name,
		PointsRequired: points,
		IsActive:       true,
	})
	require.NoError(t, err)
	return r
}

func CustomerTotal(t *testing.T, db *pg.DB, phone string) int64 {
	t.Helper()
	c, err := repository.NewCustomerRepository(db).GetByPhone(context.Background(), phone)
	require.NoError(t, err)
	return c.TotalPoints
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
