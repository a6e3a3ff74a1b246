package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	"github.com/smallbiznis/loyaltree/internal/distribution/domain"
	"github.com/smallbiznis/loyaltree/internal/distribution/repository"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/loyaltree/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/loyaltree/internal/ledger/service"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	levelcaprepository "github.com/smallbiznis/loyaltree/internal/levelcap/repository"
	levelcapservice "github.com/smallbiznis/loyaltree/internal/levelcap/service"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	memberrepository "github.com/smallbiznis/loyaltree/internal/member/repository"
	memberservice "github.com/smallbiznis/loyaltree/internal/member/service"
	"github.com/smallbiznis/loyaltree/internal/seed"
	"github.com/smallbiznis/loyaltree/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	engine  *Service
	members memberdomain.Service
	ledger  ledgerdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&levelcapdomain.LevelConfig{},
		&ledgerdomain.CoinTransaction{},
		&ledgerdomain.CoinWallet{},
		&domain.LogEntry{},
	))
	require.NoError(t, seed.EnsureLevelConfigs(db))

	cfg := config.Config{
		RootMemberCode: "ROOT",
		PointRate:      decimal.NewFromInt(5),
		CoinRate:       decimal.NewFromInt(25),
		CoinValue:      5,
		DistributionRates: []decimal.Decimal{
			decimal.RequireFromString("0.20"),
			decimal.RequireFromString("0.10"),
			decimal.RequireFromString("0.05"),
		},
	}
	require.NoError(t, seed.EnsureRootMember(db, cfg))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()
	metrics := telemetry.NewWith(prometheus.NewRegistry())
	clk := clock.NewSystemClock()

	levels := levelcapservice.New(levelcapservice.Params{
		DB:   db,
		Log:  logger,
		Repo: levelcaprepository.Provide(),
	})
	memberRepo := memberrepository.Provide()
	members := memberservice.New(memberservice.Params{
		Config:  cfg,
		DB:      db,
		Log:     logger,
		Clock:   clk,
		Repo:    memberRepo,
		Levels:  levels,
		Metrics: metrics,
	})
	ledger := ledgerservice.New(ledgerservice.Params{
		Config:  cfg,
		DB:      db,
		Log:     logger,
		Clock:   clk,
		GenID:   node,
		Repo:    ledgerrepository.Provide(),
		Members: memberRepo,
		Metrics: metrics,
	})
	engine := New(Params{
		Config:  cfg,
		DB:      db,
		Log:     logger,
		Clock:   clk,
		GenID:   node,
		Repo:    repository.Provide(),
		Members: members,
		Ledger:  ledger,
		Metrics: metrics,
	}).(*Service)

	return &fixture{db: db, engine: engine, members: members, ledger: ledger}
}

// chain builds ROOT <- A <- B <- C <- D so D has three ancestors within reach.
func (f *fixture) chain(t *testing.T) {
	t.Helper()
	specs := []struct {
		code, parent string
		level        int
	}{
		{"A", "ROOT", 2},
		{"B", "A", 3},
		{"C", "B", 4},
		{"D", "C", 5},
	}
	for _, s := range specs {
		_, err := f.members.Register(context.Background(), memberdomain.RegisterRequest{
			Code:       s.code,
			ParentCode: s.parent,
			Level:      s.level,
		})
		require.NoError(t, err)
	}
}

func (f *fixture) coins(t *testing.T, code string) int64 {
	t.Helper()
	m, err := f.members.Get(context.Background(), code)
	require.NoError(t, err)
	return m.Coins
}

func TestDistributePurchase(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	// Spend 150 at coinRate 25: 6 coins for the purchaser, shares
	// floor(6*0.20)=1, floor(6*0.10)=0, floor(6*0.05)=0 up the chain.
	receipt, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(150), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)

	require.Len(t, receipt.Entries, 3)
	assert.Equal(t, domain.ReceiptEntry{Distance: 0, RecipientCode: "D", RewardKind: domain.KindPoints, Amount: 30}, receipt.Entries[0])
	assert.Equal(t, domain.ReceiptEntry{Distance: 0, RecipientCode: "D", RewardKind: domain.KindCoins, Amount: 6}, receipt.Entries[1])
	assert.Equal(t, domain.ReceiptEntry{Distance: 1, RecipientCode: "C", RewardKind: domain.KindCoins, Amount: 1}, receipt.Entries[2])

	assert.Equal(t, int64(6), f.coins(t, "D"))
	assert.Equal(t, int64(1), f.coins(t, "C"))
	assert.Equal(t, int64(0), f.coins(t, "B"))
	assert.Equal(t, int64(0), f.coins(t, "A"))
}

func TestDistributePurchaseLargerShares(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	// 1000 spend: 40 coins, shares 8 / 4 / 2 at distances 1..3.
	receipt, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)
	require.Len(t, receipt.Entries, 5)

	assert.Equal(t, int64(40), f.coins(t, "D"))
	assert.Equal(t, int64(8), f.coins(t, "C"))
	assert.Equal(t, int64(4), f.coins(t, "B"))
	assert.Equal(t, int64(2), f.coins(t, "A"))
	assert.Equal(t, int64(0), f.coins(t, "ROOT"))
}

func TestDistributePurchaseRootBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The root has no ancestors; it keeps its own credit and the walk ends.
	receipt, err := f.engine.DistributePurchase(ctx, "ROOT", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)
	require.Len(t, receipt.Entries, 2)
	assert.Equal(t, 0, receipt.Entries[0].Distance)
	assert.Equal(t, 0, receipt.Entries[1].Distance)
	assert.Equal(t, int64(40), f.coins(t, "ROOT"))
}

func TestDistributePurchaseShortChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.members.Register(ctx, memberdomain.RegisterRequest{Code: "A", ParentCode: "ROOT", Level: 2})
	require.NoError(t, err)

	// A's only ancestor is the root; distances 2 and 3 simply do not exist.
	receipt, err := f.engine.DistributePurchase(ctx, "A", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)
	require.Len(t, receipt.Entries, 3)
	assert.Equal(t, domain.ReceiptEntry{Distance: 1, RecipientCode: "ROOT", RewardKind: domain.KindCoins, Amount: 8}, receipt.Entries[2])
	assert.Equal(t, int64(8), f.coins(t, "ROOT"))
}

func TestDistributePurchaseIdempotent(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	first, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)

	second, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, first, second, "replay must return the stored receipt")

	// No balance moves twice.
	assert.Equal(t, int64(40), f.coins(t, "D"))
	assert.Equal(t, int64(8), f.coins(t, "C"))
	assert.Equal(t, int64(4), f.coins(t, "B"))
	assert.Equal(t, int64(2), f.coins(t, "A"))

	m, err := f.members.Get(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, int64(200), m.Points)
}

func TestDistributePurchaseResumesPartialRun(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	// Run the full distribution once, then erase the distance-2 and distance-3
	// steps and their side effects to mimic a crash after distance 1.
	_, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)

	require.NoError(t, f.db.Exec(`DELETE FROM distribution_log WHERE order_id = 'ord-1' AND distance > 1`).Error)
	require.NoError(t, f.db.Exec(`DELETE FROM coin_transactions WHERE member_code IN ('A','B')`).Error)
	require.NoError(t, f.db.Exec(`UPDATE members SET coins = 0 WHERE code IN ('A','B')`).Error)

	receipt, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(1000), "ord-1")
	require.NoError(t, err)
	require.Len(t, receipt.Entries, 5)

	// Completed steps stay put, missing steps are applied exactly once.
	assert.Equal(t, int64(40), f.coins(t, "D"))
	assert.Equal(t, int64(8), f.coins(t, "C"))
	assert.Equal(t, int64(4), f.coins(t, "B"))
	assert.Equal(t, int64(2), f.coins(t, "A"))
}

func TestDistributePurchaseValidation(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	_, err := f.engine.DistributePurchase(ctx, "D", decimal.Zero, "ord-1")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(100), "")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = f.engine.DistributePurchase(ctx, "ghost", decimal.NewFromInt(100), "ord-1")
	assert.ErrorIs(t, err, memberdomain.ErrNotFound)

	// A rejected call leaves no log entries behind.
	_, found, err := f.engine.Receipt(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDistributePurchaseBelowCoinThreshold(t *testing.T) {
	f := newFixture(t)
	f.chain(t)
	ctx := context.Background()

	// 20 spend earns 4 points and zero coins; only the points step runs.
	receipt, err := f.engine.DistributePurchase(ctx, "D", decimal.NewFromInt(20), "ord-1")
	require.NoError(t, err)
	require.Len(t, receipt.Entries, 1)
	assert.Equal(t, domain.KindPoints, receipt.Entries[0].RewardKind)
	assert.Equal(t, int64(0), f.coins(t, "D"))
	assert.Equal(t, int64(0), f.coins(t, "C"))
}

func TestReceiptUnknownOrder(t *testing.T) {
	f := newFixture(t)

	receipt, found, err := f.engine.Receipt(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, receipt.Entries)
}
