package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db.DB)
	ctx := context.Background()

	b := seedBusiness(t, db, 0.01)
	c := seedCustomer(t, db, "+15560001", 0)
	p := seedProgram(t, db, b.ID, "points", 1)

	first, err := repo.GetOrCreate(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Points)

	require.NoError(t, repo.AddPoints(ctx, first.ID, 30))

	second, err := repo.GetOrCreate(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(30), second.Points, "existing balance must not be reset")

	var count int64
	require.NoError(t, db.rawDB.Model(&MembershipEntity{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMembershipRepository_AddPointsGuard(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db.DB)
	ctx := context.Background()

	b := seedBusiness(t, db, 0.01)
	c := seedCustomer(t, db, "+15560002", 0)
	p := seedProgram(t, db, b.ID, "points", 1)

	m, err := repo.GetOrCreate(ctx, c.ID, p.ID)
	require.NoError(t, err)
	require.NoError(t, repo.AddPoints(ctx, m.ID, 80))

	err = repo.AddPoints(ctx, m.ID, -100)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	require.NoError(t, repo.AddPoints(ctx, m.ID, -80))
	got, err := repo.Get(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Points)
}

func TestMembershipRepository_LockMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db.DB)

	_, err := repo.Lock(context.Background(), 1, 1)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, model.EntityMembership, nf.Entity)
}

func TestMembershipRepository_TierAndPaidWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db.DB)
	ctx := context.Background()

	b := seedBusiness(t, db, 0.01)
	c := seedCustomer(t, db, "+15560003", 0)
	p := seedProgram(t, db, b.ID, "paid", 1)

	m, err := repo.GetOrCreate(ctx, c.ID, p.ID)
	require.NoError(t, err)

	tierID := int64(7)
	require.NoError(t, repo.SetTier(ctx, m.ID, &tierID))
	got, err := repo.Get(ctx, c.ID, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentTierID)
	assert.Equal(t, tierID, *got.CurrentTierID)

	require.NoError(t, repo.SetTier(ctx, m.ID, nil))
	got, err = repo.Get(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentTierID)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	require.NoError(t, repo.SetPaidWindow(ctx, m.ID, start, end))
	got, err = repo.Get(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaidMember)
	require.NotNil(t, got.MembershipEnd)
	assert.True(t, end.Equal(*got.MembershipEnd))
}

func TestMembershipRepository_ListForBusiness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMembershipRepository(db.DB)
	ctx := context.Background()

	b1 := seedBusiness(t, db, 0.01)
	b2 := seedBusiness(t, db, 0.01)
	c := seedCustomer(t, db, "+15560004", 0)
	p1 := seedProgram(t, db, b1.ID, "points", 1)
	p2 := seedProgram(t, db, b1.ID, "tiered", 1)
	p3 := seedProgram(t, db, b2.ID, "points", 1)

	for _, p := range []*ProgramEntity{p1, p2, p3} {
		_, err := repo.GetOrCreate(ctx, c.ID, p.ID)
		require.NoError(t, err)
	}

	got, err := repo.ListForBusiness(ctx, c.ID, b1.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p1.ID, got[0].ProgramID)
	assert.Equal(t, p2.ID, got[1].ProgramID)
}
