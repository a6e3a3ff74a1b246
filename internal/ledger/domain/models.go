package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
)

// TransactionKind classifies wallet movements.
type TransactionKind string

const (
	// KindEarned is a purchaser's own coin credit.
	KindEarned TransactionKind = "earned"
	// KindDistributed is an ancestor's share of a descendant's purchase.
	KindDistributed TransactionKind = "distributed"
	// KindRedeemed is a debit against the wallet.
	KindRedeemed TransactionKind = "redeemed"
)

// CoinTransaction is an append-only wallet movement. The unique index over
// (source_order_id, member_code, reason) makes order-derived credits
// replay-safe; redemptions carry a nil order id and never collide.
type CoinTransaction struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	MemberCode    string          `gorm:"not null;index;uniqueIndex:idx_coin_txn_idem,priority:2" json:"member_code"`
	Kind          TransactionKind `gorm:"not null" json:"kind"`
	Amount        int64           `gorm:"not null" json:"amount"`
	Reason        string          `gorm:"not null;uniqueIndex:idx_coin_txn_idem,priority:3" json:"reason"`
	SourceOrderID *string         `gorm:"uniqueIndex:idx_coin_txn_idem,priority:1" json:"source_order_id,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

func (CoinTransaction) TableName() string {
	return "coin_transactions"
}

// CoinWallet is the derived balance view. It is a cache rebuildable from the
// transaction log, never a source of truth.
type CoinWallet struct {
	MemberCode  string    `gorm:"primaryKey" json:"member_code"`
	TotalCoins  int64     `gorm:"not null;default:0" json:"total_coins"`
	TotalValue  int64     `gorm:"not null;default:0" json:"total_value"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

func (CoinWallet) TableName() string {
	return "coin_wallets"
}

// Tier thresholds, in points.
const (
	silverThreshold  = 40
	goldThreshold    = 80
	diamondThreshold = 160
)

// TierOf derives the loyalty tier from a points total. Pure function;
// non-decreasing in points.
func TierOf(points int64) memberdomain.Tier {
	switch {
	case points >= diamondThreshold:
		return memberdomain.TierDiamond
	case points >= goldThreshold:
		return memberdomain.TierGold
	case points >= silverThreshold:
		return memberdomain.TierSilver
	default:
		return memberdomain.TierBronze
	}
}
