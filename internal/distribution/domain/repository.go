package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// AppendEntry inserts a log row, doing nothing when the step key already
	// exists. Reports whether the row was inserted.
	AppendEntry(ctx context.Context, db *gorm.DB, entry *LogEntry) (bool, error)
	FindEntry(ctx context.Context, db *gorm.DB, orderID, recipientCode string, distance int, kind RewardKind) (*LogEntry, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]LogEntry, error)
}
