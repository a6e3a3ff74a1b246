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
	distributiondomain "github.com/smallbiznis/loyaltree/internal/distribution/domain"
	distributionrepository "github.com/smallbiznis/loyaltree/internal/distribution/repository"
	distributionservice "github.com/smallbiznis/loyaltree/internal/distribution/service"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/loyaltree/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/loyaltree/internal/ledger/service"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	levelcaprepository "github.com/smallbiznis/loyaltree/internal/levelcap/repository"
	levelcapservice "github.com/smallbiznis/loyaltree/internal/levelcap/service"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	memberrepository "github.com/smallbiznis/loyaltree/internal/member/repository"
	memberservice "github.com/smallbiznis/loyaltree/internal/member/service"
	"github.com/smallbiznis/loyaltree/internal/purchase/domain"
	"github.com/smallbiznis/loyaltree/internal/purchase/repository"
	"github.com/smallbiznis/loyaltree/internal/seed"
	"github.com/smallbiznis/loyaltree/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	members memberdomain.Service
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
		&distributiondomain.LogEntry{},
		&domain.PurchaseOrder{},
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
	engine := distributionservice.New(distributionservice.Params{
		Config:  cfg,
		DB:      db,
		Log:     logger,
		Clock:   clk,
		GenID:   node,
		Repo:    distributionrepository.Provide(),
		Members: members,
		Ledger:  ledger,
		Metrics: metrics,
	})
	svc := New(Params{
		Config:  cfg,
		DB:      db,
		Log:     logger,
		Clock:   clk,
		Repo:    repository.Provide(),
		Members: members,
		Engine:  engine,
	}).(*Service)

	_, err = members.Register(context.Background(), memberdomain.RegisterRequest{
		Code:       "BUYER",
		ParentCode: "ROOT",
		Level:      2,
	})
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, members: members}
}

func (f *fixture) createOrder(t *testing.T, id string, amount int64) domain.PurchaseOrder {
	t.Helper()
	order, err := f.svc.Create(context.Background(), domain.CreateOrderRequest{
		OrderID:    id,
		MemberCode: "BUYER",
		Amount:     decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.createOrder(t, "ord-1", 150)
	assert.Equal(t, domain.StatusCreated, order.Status)
	assert.False(t, order.RewardsApplied)

	_, err := f.svc.Create(ctx, domain.CreateOrderRequest{
		OrderID:    "ord-1",
		MemberCode: "BUYER",
		Amount:     decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)

	_, err = f.svc.Create(ctx, domain.CreateOrderRequest{
		OrderID:    "ord-2",
		MemberCode: "ghost",
		Amount:     decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, memberdomain.ErrNotFound)

	_, err = f.svc.Create(ctx, domain.CreateOrderRequest{
		OrderID:    "ord-3",
		MemberCode: "BUYER",
		Amount:     decimal.Zero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrderAmount)
}

func TestTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	steps := []domain.OrderStatus{
		domain.StatusPendingApproval,
		domain.StatusConfirmed,
		domain.StatusShipped,
		domain.StatusDelivered,
	}
	for _, status := range steps {
		order, err := f.svc.Transition(ctx, "ord-1", status)
		require.NoError(t, err)
		assert.Equal(t, status, order.Status)
	}

	// Delivered is terminal.
	_, err := f.svc.Transition(ctx, "ord-1", domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionRejectsSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	_, err := f.svc.Transition(ctx, "ord-1", domain.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, "ord-1", domain.StatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, "ord-1", "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, "ghost", domain.StatusPendingApproval)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTransitionCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	order, err := f.svc.Transition(ctx, "ord-1", domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)

	_, err = f.svc.Transition(ctx, "ord-1", domain.StatusPendingApproval)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProcessOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	receipt, err := f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)
	require.NotEmpty(t, receipt.Entries)

	order, err := f.svc.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, order.RewardsApplied)

	buyer, err := f.members.Get(ctx, "BUYER")
	require.NoError(t, err)
	assert.Equal(t, int64(30), buyer.Points)
	assert.Equal(t, int64(6), buyer.Coins)
}

func TestProcessOrderReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	first, err := f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)

	second, err := f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	buyer, err := f.members.Get(ctx, "BUYER")
	require.NoError(t, err)
	assert.Equal(t, int64(30), buyer.Points, "replay must not credit twice")
	assert.Equal(t, int64(6), buyer.Coins)
}

func TestProcessOrderResumesAfterCrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	_, err := f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)

	// Mimic a crash between distribution and the flag write: the flag is
	// clear but the log rows exist. Reprocessing applies nothing new.
	require.NoError(t, f.db.Exec(`UPDATE purchase_orders SET rewards_applied = false WHERE id = 'ord-1'`).Error)

	receipt, err := f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Entries)

	order, err := f.svc.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, order.RewardsApplied)

	buyer, err := f.members.Get(ctx, "BUYER")
	require.NoError(t, err)
	assert.Equal(t, int64(6), buyer.Coins)
}

func TestProcessOrderCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	_, err := f.svc.Transition(ctx, "ord-1", domain.StatusCancelled)
	require.NoError(t, err)

	_, err = f.svc.ProcessOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrOrderCancelled)

	_, err = f.svc.ProcessOrder(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createOrder(t, "ord-1", 150)

	_, err := f.svc.Receipt(ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrRewardsNotApplied)

	_, err = f.svc.ProcessOrder(ctx, "ord-1")
	require.NoError(t, err)

	receipt, err := f.svc.Receipt(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)
	assert.NotEmpty(t, receipt.Entries)

	_, err = f.svc.Receipt(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
