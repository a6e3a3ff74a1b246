package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"gorm.io/gorm"
)

// CreditCoinsRequest credits coins to a member's wallet. The triple
// (SourceOrderID, MemberCode, Reason) is the idempotency key for
// order-derived credits.
type CreditCoinsRequest struct {
	MemberCode    string
	Amount        int64
	Kind          TransactionKind
	Reason        string
	SourceOrderID *string
}

type Service interface {
	// CreditPointsForSpend converts spend into points for a member, carrying
	// the fractional remainder forward, and recomputes the tier. The write is
	// guarded by an optimistic version check; a mismatch fails with
	// ErrConcurrencyConflict and the caller retries the whole operation.
	// Runs inside tx when given one.
	CreditPointsForSpend(ctx context.Context, tx *gorm.DB, code string, amount decimal.Decimal) (int64, error)
	// TierOf derives the tier for a points total.
	TierOf(points int64) memberdomain.Tier
	// CoinsFromSpend converts spend into whole coins.
	CoinsFromSpend(amount decimal.Decimal) int64
	// CreditCoins appends a wallet transaction and increments the member's
	// balance. Replays with the same idempotency key apply nothing and
	// report applied=false.
	CreditCoins(ctx context.Context, tx *gorm.DB, req CreditCoinsRequest) (applied bool, err error)
	// RedeemCoins debits the wallet atomically; no partial redemption.
	RedeemCoins(ctx context.Context, code string, amount int64) error
	// Wallet returns the derived balance view.
	Wallet(ctx context.Context, code string) (CoinWallet, error)
	// RebuildWallet reconstructs the cached wallet row from the transaction log.
	RebuildWallet(ctx context.Context, code string) (CoinWallet, error)
	// Transactions returns the wallet history, newest first.
	Transactions(ctx context.Context, code string) ([]CoinTransaction, error)
}

var (
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)

// InsufficientBalanceError carries the available balance so callers can
// report it without re-deriving state.
type InsufficientBalanceError struct {
	Requested int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d coins, %d available", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
