package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	"github.com/smallbiznis/loyaltree/internal/ledger/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"github.com/smallbiznis/loyaltree/internal/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Repo    domain.Repository
	Members memberdomain.Repository
	Metrics *telemetry.Metrics
}

type Service struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	members memberdomain.Repository
	metrics *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Config,
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		members: p.Members,
		metrics: p.Metrics,
	}
}

func (s *Service) CreditPointsForSpend(ctx context.Context, tx *gorm.DB, code string, amount decimal.Decimal) (int64, error) {
	if amount.Sign() <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if tx == nil {
		tx = s.db
	}

	member, err := s.members.FindByCode(ctx, tx, code)
	if err != nil {
		return 0, err
	}
	if member == nil {
		return 0, memberdomain.ErrNotFound
	}

	accumulated := member.AccumulatedPointMoney.Add(amount)
	earned := accumulated.Div(s.cfg.PointRate).Floor().IntPart()
	accumulated = accumulated.Sub(s.cfg.PointRate.Mul(decimal.NewFromInt(earned)))

	member.Points += earned
	member.Tier = domain.TierOf(member.Points)
	member.TotalSpent = member.TotalSpent.Add(amount)
	member.AccumulatedPointMoney = accumulated

	updated, err := s.repo.UpdateRewards(ctx, tx, member, member.Version)
	if err != nil {
		return 0, err
	}
	if !updated {
		s.metrics.ConcurrencyConflictsTotal.Inc()
		return 0, domain.ErrConcurrencyConflict
	}
	return earned, nil
}

func (s *Service) TierOf(points int64) memberdomain.Tier {
	return domain.TierOf(points)
}

func (s *Service) CoinsFromSpend(amount decimal.Decimal) int64 {
	if amount.Sign() <= 0 {
		return 0
	}
	return amount.Div(s.cfg.CoinRate).Floor().IntPart()
}

func (s *Service) CreditCoins(ctx context.Context, tx *gorm.DB, req domain.CreditCoinsRequest) (bool, error) {
	if req.Amount <= 0 {
		return false, domain.ErrInvalidAmount
	}
	code := strings.TrimSpace(req.MemberCode)
	if tx == nil {
		tx = s.db
	}

	txn := domain.CoinTransaction{
		ID:            s.genID.Generate(),
		MemberCode:    code,
		Kind:          req.Kind,
		Amount:        req.Amount,
		Reason:        req.Reason,
		SourceOrderID: req.SourceOrderID,
		CreatedAt:     s.clock.Now(),
	}

	inserted, err := s.repo.AppendTransaction(ctx, tx, &txn)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Replayed idempotency key; the balance was already applied.
		return false, nil
	}

	found, err := s.repo.IncrementCoins(ctx, tx, code, req.Amount)
	if err != nil {
		return false, err
	}
	if !found {
		return false, memberdomain.ErrNotFound
	}

	if err := s.repo.AdjustWallet(ctx, tx, code, req.Amount, req.Amount*s.cfg.CoinValue); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) RedeemCoins(ctx context.Context, code string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	code = strings.TrimSpace(code)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debited, err := s.repo.DecrementCoins(ctx, tx, code, amount)
		if err != nil {
			return err
		}
		if !debited {
			member, err := s.members.FindByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			if member == nil {
				return memberdomain.ErrNotFound
			}
			return &domain.InsufficientBalanceError{Requested: amount, Available: member.Coins}
		}

		txn := domain.CoinTransaction{
			ID:         s.genID.Generate(),
			MemberCode: code,
			Kind:       domain.KindRedeemed,
			Amount:     amount,
			Reason:     "redeemed",
			CreatedAt:  s.clock.Now(),
		}
		if _, err := s.repo.AppendTransaction(ctx, tx, &txn); err != nil {
			return err
		}

		return s.repo.AdjustWallet(ctx, tx, code, -amount, -amount*s.cfg.CoinValue)
	})
	if err != nil {
		s.metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return err
	}

	s.metrics.RedemptionsTotal.WithLabelValues("accepted").Inc()
	s.log.Info("coins redeemed", zap.String("code", code), zap.Int64("amount", amount))
	return nil
}

func (s *Service) Wallet(ctx context.Context, code string) (domain.CoinWallet, error) {
	code = strings.TrimSpace(code)
	wallet, err := s.repo.FindWallet(ctx, s.db, code)
	if err != nil {
		return domain.CoinWallet{}, err
	}
	if wallet == nil {
		member, err := s.members.FindByCode(ctx, s.db, code)
		if err != nil {
			return domain.CoinWallet{}, err
		}
		if member == nil {
			return domain.CoinWallet{}, memberdomain.ErrNotFound
		}
		return domain.CoinWallet{MemberCode: code, LastUpdated: member.CreatedAt}, nil
	}
	return *wallet, nil
}

func (s *Service) RebuildWallet(ctx context.Context, code string) (domain.CoinWallet, error) {
	code = strings.TrimSpace(code)
	member, err := s.members.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.CoinWallet{}, err
	}
	if member == nil {
		return domain.CoinWallet{}, memberdomain.ErrNotFound
	}

	total, err := s.repo.SumTransactions(ctx, s.db, code)
	if err != nil {
		return domain.CoinWallet{}, err
	}

	wallet := domain.CoinWallet{
		MemberCode:  code,
		TotalCoins:  total,
		TotalValue:  total * s.cfg.CoinValue,
		LastUpdated: s.clock.Now(),
	}
	if err := s.repo.ReplaceWallet(ctx, s.db, &wallet); err != nil {
		return domain.CoinWallet{}, err
	}
	return wallet, nil
}

func (s *Service) Transactions(ctx context.Context, code string) ([]domain.CoinTransaction, error) {
	code = strings.TrimSpace(code)
	member, err := s.members.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, memberdomain.ErrNotFound
	}
	return s.repo.ListTransactions(ctx, s.db, code)
}
