package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	"github.com/smallbiznis/loyaltree/internal/distribution/domain"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
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
	Members memberdomain.Service
	Ledger  ledgerdomain.Service
	Metrics *telemetry.Metrics
}

type Service struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	genID   *snowflake.Node
	repo    domain.Repository
	members memberdomain.Service
	ledger  ledgerdomain.Service
	metrics *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Config,
		db:      p.DB,
		log:     p.Log.Named("distribution.service"),
		clock:   p.Clock,
		genID:   p.GenID,
		repo:    p.Repo,
		members: p.Members,
		ledger:  p.Ledger,
		metrics: p.Metrics,
	}
}

// DistributePurchase walks the purchase through its steps. Crediting the
// purchaser and each ancestor are independent transactions, each marked by a
// keyed log row, so a crash mid-walk is healed by replaying: steps already
// marked apply nothing.
func (s *Service) DistributePurchase(ctx context.Context, sourceCode string, amount decimal.Decimal, orderID string) (domain.Receipt, error) {
	sourceCode = strings.TrimSpace(sourceCode)
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || amount.Sign() <= 0 {
		return domain.Receipt{}, ledgerdomain.ErrInvalidAmount
	}

	if _, err := s.members.Get(ctx, sourceCode); err != nil {
		return domain.Receipt{}, err
	}

	// Coin conversion is a pure function of the amount, so replays re-derive
	// identical shares for every step below.
	coinsEarned := s.ledger.CoinsFromSpend(amount)
	applied := false

	if err := s.creditPurchaserPoints(ctx, sourceCode, amount, orderID, &applied); err != nil {
		s.metrics.DistributionsTotal.WithLabelValues("failed").Inc()
		return domain.Receipt{}, err
	}

	if coinsEarned > 0 {
		if err := s.creditCoinsStep(ctx, stepRequest{
			orderID:    orderID,
			sourceCode: sourceCode,
			recipient:  sourceCode,
			distance:   0,
			amount:     coinsEarned,
			kind:       ledgerdomain.KindEarned,
			reason:     "purchase_earn",
		}, &applied); err != nil {
			s.metrics.DistributionsTotal.WithLabelValues("failed").Inc()
			return domain.Receipt{}, err
		}
	}

	chain, err := s.members.AncestorChain(ctx, sourceCode, s.cfg.MaxDistributionDepth())
	if err != nil {
		return domain.Receipt{}, err
	}
	for i, ancestor := range chain {
		distance := i + 1
		share := decimal.NewFromInt(coinsEarned).Mul(s.cfg.DistributionRates[i]).Floor().IntPart()
		if share <= 0 {
			continue
		}
		if err := s.creditCoinsStep(ctx, stepRequest{
			orderID:    orderID,
			sourceCode: sourceCode,
			recipient:  ancestor.Code,
			distance:   distance,
			amount:     share,
			kind:       ledgerdomain.KindDistributed,
			reason:     fmt.Sprintf("distribution_d%d", distance),
		}, &applied); err != nil {
			s.metrics.DistributionsTotal.WithLabelValues("failed").Inc()
			return domain.Receipt{}, err
		}
	}

	receipt, _, err := s.Receipt(ctx, orderID)
	if err != nil {
		return domain.Receipt{}, err
	}

	outcome := "replayed"
	if applied {
		outcome = "applied"
	}
	s.metrics.DistributionsTotal.WithLabelValues(outcome).Inc()
	s.log.Info("purchase distributed",
		zap.String("order_id", orderID),
		zap.String("source", sourceCode),
		zap.Int64("coins_earned", coinsEarned),
		zap.Int("entries", len(receipt.Entries)),
		zap.Bool("replay", !applied),
	)
	return receipt, nil
}

// creditPurchaserPoints runs the one non-deterministic step: the points
// earned depend on the carried remainder, so the log row records the amount
// actually credited and gates the mutation.
func (s *Service) creditPurchaserPoints(ctx context.Context, sourceCode string, amount decimal.Decimal, orderID string, applied *bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindEntry(ctx, tx, orderID, sourceCode, 0, domain.KindPoints)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		earned, err := s.ledger.CreditPointsForSpend(ctx, tx, sourceCode, amount)
		if err != nil {
			return err
		}

		inserted, err := s.repo.AppendEntry(ctx, tx, &domain.LogEntry{
			ID:            s.genID.Generate(),
			OrderID:       orderID,
			SourceCode:    sourceCode,
			RecipientCode: sourceCode,
			Distance:      0,
			RewardKind:    domain.KindPoints,
			Amount:        earned,
			CreatedAt:     s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent call marked the step between our check and insert;
			// roll the credit back and let the caller retry.
			return ledgerdomain.ErrConcurrencyConflict
		}
		*applied = true
		return nil
	})
}

type stepRequest struct {
	orderID    string
	sourceCode string
	recipient  string
	distance   int
	amount     int64
	kind       ledgerdomain.TransactionKind
	reason     string
}

func (s *Service) creditCoinsStep(ctx context.Context, req stepRequest, applied *bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.AppendEntry(ctx, tx, &domain.LogEntry{
			ID:            s.genID.Generate(),
			OrderID:       req.orderID,
			SourceCode:    req.sourceCode,
			RecipientCode: req.recipient,
			Distance:      req.distance,
			RewardKind:    domain.KindCoins,
			Amount:        req.amount,
			CreatedAt:     s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		orderID := req.orderID
		if _, err := s.ledger.CreditCoins(ctx, tx, ledgerdomain.CreditCoinsRequest{
			MemberCode:    req.recipient,
			Amount:        req.amount,
			Kind:          req.kind,
			Reason:        req.reason,
			SourceOrderID: &orderID,
		}); err != nil {
			return err
		}

		if req.distance > 0 {
			s.metrics.CoinsDistributedTotal.Add(float64(req.amount))
		}
		*applied = true
		return nil
	})
}

func (s *Service) Receipt(ctx context.Context, orderID string) (domain.Receipt, bool, error) {
	entries, err := s.repo.ListByOrder(ctx, s.db, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Receipt{}, false, err
	}

	receipt := domain.Receipt{OrderID: orderID, Entries: make([]domain.ReceiptEntry, 0, len(entries))}
	for _, entry := range entries {
		receipt.Entries = append(receipt.Entries, domain.ReceiptEntry{
			Distance:      entry.Distance,
			RecipientCode: entry.RecipientCode,
			RewardKind:    entry.RewardKind,
			Amount:        entry.Amount,
		})
	}
	return receipt, len(entries) > 0, nil
}
