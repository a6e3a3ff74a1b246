package domain

import (
	"context"

	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// UpdateRewards persists the member's reward fields iff the row still has
	// expectedVersion, bumping the version. Reports false on a lost race.
	UpdateRewards(ctx context.Context, db *gorm.DB, member *memberdomain.Member, expectedVersion int64) (bool, error)
	// IncrementCoins adds to the member's coin balance in a single statement.
	IncrementCoins(ctx context.Context, db *gorm.DB, code string, amount int64) (bool, error)
	// DecrementCoins subtracts iff the balance covers the amount.
	DecrementCoins(ctx context.Context, db *gorm.DB, code string, amount int64) (bool, error)
	// AppendTransaction inserts a wallet transaction, doing nothing when the
	// idempotency key already exists. Reports whether the row was inserted.
	AppendTransaction(ctx context.Context, db *gorm.DB, txn *CoinTransaction) (bool, error)
	// AdjustWallet applies a delta to the cached wallet row, creating it on
	// first use.
	AdjustWallet(ctx context.Context, db *gorm.DB, code string, coinDelta, valueDelta int64) error
	// ReplaceWallet overwrites the cached wallet row.
	ReplaceWallet(ctx context.Context, db *gorm.DB, wallet *CoinWallet) error
	FindWallet(ctx context.Context, db *gorm.DB, code string) (*CoinWallet, error)
	// SumTransactions folds the transaction log into a net coin balance.
	SumTransactions(ctx context.Context, db *gorm.DB, code string) (int64, error)
	ListTransactions(ctx context.Context, db *gorm.DB, code string) ([]CoinTransaction, error)
}
