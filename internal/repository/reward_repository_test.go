package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/loyalty-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardRepository_ListAvailable(t *testing.T) {
	db := setupTestDB(t)
	rewards := NewRewardRepository(db.DB)
	memberships := NewMembershipRepository(db.DB)
	ctx := context.Background()

	b := seedBusiness(t, db, 0.01)
	other := seedBusiness(t, db, 0.01)
	c := seedCustomer(t, db, "+15570001", 0)
	p := seedProgram(t, db, b.ID, "points", 1)
	foreign := seedProgram(t, db, other.ID, "points", 1)

	m, err := memberships.GetOrCreate(ctx, c.ID, p.ID)
	require.NoError(t, err)
	require.NoError(t, memberships.AddPoints(ctx, m.ID, 150))
	fm, err := memberships.GetOrCreate(ctx, c.ID, foreign.ID)
	require.NoError(t, err)
	require.NoError(t, memberships.AddPoints(ctx, fm.ID, 1000))

	stock := 10
	for _, r := range []*model.Reward{
		{ProgramID: p.ID, Name: "cookie", PointsRequired: 50, IsActive: true, StockLimit: &stock},
		{ProgramID: p.ID, Name: "coffee", PointsRequired: 150, IsActive: true},
		{ProgramID: p.ID, Name: "mug", PointsRequired: 500, IsActive: true},
		{ProgramID: p.ID, Name: "retired", PointsRequired: 10, IsActive: false},
		{ProgramID: foreign.ID, Name: "elsewhere", PointsRequired: 10, IsActive: true},
	} {
		_, err := rewards.Create(ctx, r)
		require.NoError(t, err)
	}

	got, err := rewards.ListAvailable(ctx, c.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cookie", got[0].Name)
	assert.Equal(t, 10, *got[0].StockLimit)
	assert.Equal(t, "coffee", got[1].Name)
}

func TestRewardRepository_ListActiveByProgram(t *testing.T) {
	db := setupTestDB(t)
	rewards := NewRewardRepository(db.DB)
	ctx := context.Background()

	b := seedBusiness(t, db, 0.01)
	p := seedProgram(t, db, b.ID, "points", 1)
	sibling := seedProgram(t, db, b.ID, "cashback", 5)

	for _, r := range []*model.Reward{
		{ProgramID: p.ID, Name: "mug", PointsRequired: 500, IsActive: true},
		{ProgramID: p.ID, Name: "cookie", PointsRequired: 50, IsActive: true},
		{ProgramID: p.ID, Name: "retired", PointsRequired: 10, IsActive: false},
		{ProgramID: sibling.ID, Name: "voucher", PointsRequired: 20, IsActive: true},
	} {
		_, err := rewards.Create(ctx, r)
		require.NoError(t, err)
	}

	got, err := rewards.ListActiveByProgram(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cookie", got[0].Name)
	assert.Equal(t, "mug", got[1].Name)

	none, err := rewards.ListActiveByProgram(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
