package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/ledger/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&domain.CoinTransaction{},
		&domain.CoinWallet{},
	))
	return db
}

func seedMember(t *testing.T, db *gorm.DB, code string) *memberdomain.Member {
	t.Helper()
	now := time.Now().UTC()
	m := &memberdomain.Member{
		Code:                  code,
		Level:                 1,
		Tier:                  memberdomain.TierBronze,
		TotalSpent:            decimal.Zero,
		AccumulatedPointMoney: decimal.Zero,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestUpdateRewardsOptimisticLock(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()
	m := seedMember(t, db, "M1")

	m.Points = 10
	m.Tier = memberdomain.TierBronze
	updated, err := repo.UpdateRewards(ctx, db, m, 0)
	require.NoError(t, err)
	assert.True(t, updated)

	// A second writer holding the stale version must lose.
	m.Points = 99
	updated, err = repo.UpdateRewards(ctx, db, m, 0)
	require.NoError(t, err)
	assert.False(t, updated)

	var fresh memberdomain.Member
	require.NoError(t, db.First(&fresh, "code = ?", "M1").Error)
	assert.Equal(t, int64(10), fresh.Points)
	assert.Equal(t, int64(1), fresh.Version)
}

func TestDecrementCoinsGuardsBalance(t *testing.T) {
	db := newTestDB(t)
	repo := Provide()
	ctx := context.Background()
	seedMember(t, db, "M1")

	found, err := repo.IncrementCoins(ctx, db, "M1", 5)
	require.NoError(t, err)
	assert.True(t, found)

	debited, err := repo.DecrementCoins(ctx, db, "M1", 6)
	require.NoError(t, err)
	assert.False(t, debited, "overdraft must not apply")

	debited, err = repo.DecrementCoins(ctx, db, "M1", 5)
	require.NoError(t, err)
	assert.True(t, debited)

	var fresh memberdomain.Member
	require.NoError(t, db.First(&fresh, "code = ?", "M1").Error)
	assert.Equal(t, int64(0), fresh.Coins)
}
