package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the loyalty status derived from accumulated points. It is never
// stored independent of the points value it was derived from; every point
// mutation recomputes it.
type Tier string

const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

// Member is a node of the referral tree, keyed by its immutable code.
// Balance fields are mutated only by the reward ledger and distribution
// engine; Version guards those mutations optimistically.
type Member struct {
	Code       string  `gorm:"primaryKey" json:"code"`
	ParentCode *string `gorm:"index" json:"parent_code,omitempty"`
	Level      int     `gorm:"not null" json:"level"`
	Points     int64   `gorm:"not null;default:0" json:"points"`
	Coins      int64   `gorm:"not null;default:0" json:"coins"`
	Tier       Tier    `gorm:"not null;default:bronze" json:"tier"`
	TotalSpent decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_spent"`
	// AccumulatedPointMoney carries the fractional remainder of spend not yet
	// converted to points. Invariant: 0 <= value < pointRate after every credit.
	AccumulatedPointMoney decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0" json:"accumulated_point_money"`
	Version               int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt             time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// Snapshot is the queryable reward view of a member.
type Snapshot struct {
	Code   string `json:"code"`
	Points int64  `json:"points"`
	Coins  int64  `json:"coins"`
	Tier   Tier   `json:"tier"`
	Level  int    `json:"level"`
}

// TreeNode is one node of the reporting tree snapshot.
type TreeNode struct {
	Code     string      `json:"code"`
	Level    int         `json:"level"`
	Tier     Tier        `json:"tier"`
	Children []*TreeNode `json:"children,omitempty"`
}
