package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	"github.com/smallbiznis/loyaltree/internal/levelcap/repository"
	"github.com/smallbiznis/loyaltree/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.LevelConfig{}))
	require.NoError(t, seed.EnsureLevelConfigs(db))

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	}).(*Service)
	return svc, db
}

func TestCapacityTable(t *testing.T) {
	svc, _ := newTestService(t)

	want := map[int]int64{1: 1, 2: 5, 3: 25, 4: 125, 5: 625, 6: 3125}
	for level, capacity := range want {
		got, err := svc.Capacity(level)
		require.NoError(t, err)
		assert.Equal(t, capacity, got, "level %d", level)
	}

	for _, level := range []int{0, -1, 7, 100} {
		_, err := svc.Capacity(level)
		assert.ErrorIs(t, err, domain.ErrInvalidLevel, "level %d", level)
	}
}

func TestReserveSlotUntilFull(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Level 2 holds exactly five members.
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.ReserveSlot(ctx, nil, 2), "slot %d", i+1)
	}

	filled, err := svc.Occupancy(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), filled)

	err = svc.ReserveSlot(ctx, nil, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	var full *domain.CapacityExceededError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Level)
	assert.Equal(t, int64(5), full.Capacity)

	// The failed attempt must not bump the counter.
	filled, err = svc.Occupancy(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), filled)
}

func TestReserveSlotInvalidLevel(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.ReserveSlot(context.Background(), nil, 0), domain.ErrInvalidLevel)
	assert.ErrorIs(t, svc.ReserveSlot(context.Background(), nil, 7), domain.ErrInvalidLevel)
}

func TestReleaseSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReserveSlot(ctx, nil, 3))
	require.NoError(t, svc.ReserveSlot(ctx, nil, 3))
	require.NoError(t, svc.ReleaseSlot(ctx, nil, 3))

	filled, err := svc.Occupancy(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), filled)

	// Releasing an empty level is a no-op, never negative occupancy.
	require.NoError(t, svc.ReleaseSlot(ctx, nil, 4))
	filled, err = svc.Occupancy(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), filled)
}

func TestSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReserveSlot(ctx, nil, 1))
	require.NoError(t, svc.ReserveSlot(ctx, nil, 2))

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Levels, 6)
	assert.Equal(t, domain.LevelOccupancy{Level: 1, Filled: 1, Capacity: 1}, snapshot.Levels[0])
	assert.Equal(t, domain.LevelOccupancy{Level: 2, Filled: 1, Capacity: 5}, snapshot.Levels[1])
	assert.Equal(t, domain.LevelOccupancy{Level: 6, Filled: 0, Capacity: 3125}, snapshot.Levels[5])
}

func TestConcurrentLastSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Fill level 2 to 4/5, then race ten reservations for the last slot.
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.ReserveSlot(ctx, nil, 2))
	}

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.ReserveSlot(ctx, nil, 2)
		}()
	}
	wg.Wait()
	close(results)

	var wins, rejections int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, domain.ErrCapacityExceeded)
			rejections++
		}
	}
	assert.Equal(t, 1, wins, "exactly one reservation may win the last slot")
	assert.Equal(t, attempts-1, rejections)

	filled, err := svc.Occupancy(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), filled)
}
