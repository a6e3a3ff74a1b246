package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RewardKind distinguishes point and coin rows in the distribution log.
type RewardKind string

const (
	KindPoints RewardKind = "points"
	KindCoins  RewardKind = "coins"
)

// LogEntry is one immutable step of a purchase distribution. Distance 0 rows
// record the purchaser's own credit; distances 1..3 record ancestor coin
// shares. The unique index makes every step replay-safe.
type LogEntry struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID       string       `gorm:"not null;index;uniqueIndex:idx_distribution_step,priority:1" json:"order_id"`
	SourceCode    string       `gorm:"not null;index" json:"source_code"`
	RecipientCode string       `gorm:"not null;uniqueIndex:idx_distribution_step,priority:2" json:"recipient_code"`
	Distance      int          `gorm:"not null;uniqueIndex:idx_distribution_step,priority:3" json:"distance"`
	RewardKind    RewardKind   `gorm:"not null;uniqueIndex:idx_distribution_step,priority:4" json:"reward_kind"`
	Amount        int64        `gorm:"not null" json:"amount"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (LogEntry) TableName() string {
	return "distribution_log"
}

// ReceiptEntry is one credited reward in a distribution receipt.
type ReceiptEntry struct {
	Distance      int        `json:"distance"`
	RecipientCode string     `json:"recipient_code"`
	RewardKind    RewardKind `json:"reward_kind"`
	Amount        int64      `json:"amount"`
}

// Receipt lists everything a purchase credited, purchaser included.
type Receipt struct {
	OrderID string         `json:"order_id"`
	Entries []ReceiptEntry `json:"entries"`
}
