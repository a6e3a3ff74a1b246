package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	distributiondomain "github.com/smallbiznis/loyaltree/internal/distribution/domain"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	"github.com/smallbiznis/loyaltree/internal/locker"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"github.com/smallbiznis/loyaltree/internal/purchase/domain"
	"github.com/smallbiznis/loyaltree/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const processLockTTL = 30 * time.Second

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Members memberdomain.Service
	Engine  distributiondomain.Service
	Locker  *locker.Locker `optional:"true"`
}

type Service struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	members memberdomain.Service
	engine  distributiondomain.Service
	locker  *locker.Locker
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Config,
		db:      p.DB,
		log:     p.Log.Named("purchase.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		members: p.Members,
		engine:  p.Engine,
		locker:  p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (domain.PurchaseOrder, error) {
	id := strings.TrimSpace(req.OrderID)
	if id == "" {
		return domain.PurchaseOrder{}, domain.ErrOrderNotFound
	}
	if req.Amount.Sign() <= 0 {
		return domain.PurchaseOrder{}, domain.ErrInvalidOrderAmount
	}

	if _, err := s.members.Get(ctx, req.MemberCode); err != nil {
		return domain.PurchaseOrder{}, err
	}

	now := s.clock.Now()
	order := domain.PurchaseOrder{
		ID:         id,
		MemberCode: strings.TrimSpace(req.MemberCode),
		Amount:     req.Amount,
		Status:     domain.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.PurchaseOrder{}, domain.ErrDuplicateOrder
		}
		return domain.PurchaseOrder{}, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	order, err := s.repo.FindByID(ctx, s.db, strings.TrimSpace(id))
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if order == nil {
		return domain.PurchaseOrder{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) Transition(ctx context.Context, id string, to domain.OrderStatus) (domain.PurchaseOrder, error) {
	if !domain.ValidStatus(to) {
		return domain.PurchaseOrder{}, domain.ErrInvalidTransition
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if !domain.CanTransition(order.Status, to) {
		return domain.PurchaseOrder{}, domain.ErrInvalidTransition
	}

	moved, err := s.repo.UpdateStatus(ctx, s.db, order.ID, order.Status, to)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if !moved {
		// The order moved underneath us; the caller retries against the
		// fresh state.
		return domain.PurchaseOrder{}, ledgerdomain.ErrConcurrencyConflict
	}

	order.Status = to
	s.log.Info("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("status", string(to)),
	)
	return order, nil
}

// ProcessOrder applies rewards for an order exactly once. The stored receipt
// is returned on replay; a crash between distribution and the flag update is
// healed by the engine's idempotent steps on the next call.
func (s *Service) ProcessOrder(ctx context.Context, id string) (distributiondomain.Receipt, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return distributiondomain.Receipt{}, err
	}
	if order.Status == domain.StatusCancelled {
		return distributiondomain.Receipt{}, domain.ErrOrderCancelled
	}
	if order.RewardsApplied {
		receipt, _, err := s.engine.Receipt(ctx, order.ID)
		return receipt, err
	}

	lockKey := "loyaltree:order:" + order.ID
	token, acquired, err := s.locker.TryLock(ctx, lockKey, processLockTTL)
	if err != nil {
		return distributiondomain.Receipt{}, err
	}
	if !acquired {
		return distributiondomain.Receipt{}, ledgerdomain.ErrConcurrencyConflict
	}
	defer func() {
		if err := s.locker.Release(ctx, lockKey, token); err != nil {
			s.log.Warn("order lock release failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}()

	receipt, err := s.engine.DistributePurchase(ctx, order.MemberCode, order.Amount, order.ID)
	if err != nil {
		return distributiondomain.Receipt{}, err
	}

	if _, err := s.repo.MarkRewardsApplied(ctx, s.db, order.ID); err != nil {
		return distributiondomain.Receipt{}, err
	}

	s.log.Info("order processed",
		zap.String("order_id", order.ID),
		zap.String("member", order.MemberCode),
		zap.Int("entries", len(receipt.Entries)),
	)
	return receipt, nil
}

func (s *Service) Receipt(ctx context.Context, id string) (distributiondomain.Receipt, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return distributiondomain.Receipt{}, err
	}

	receipt, found, err := s.engine.Receipt(ctx, order.ID)
	if err != nil {
		return distributiondomain.Receipt{}, err
	}
	if !found && !order.RewardsApplied {
		return distributiondomain.Receipt{}, domain.ErrRewardsNotApplied
	}
	return receipt, nil
}
