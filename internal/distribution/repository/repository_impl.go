package repository

import (
	"context"

	"github.com/smallbiznis/loyaltree/internal/distribution/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) AppendEntry(ctx context.Context, db *gorm.DB, entry *domain.LogEntry) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindEntry(ctx context.Context, db *gorm.DB, orderID, recipientCode string, distance int, kind domain.RewardKind) (*domain.LogEntry, error) {
	var entry domain.LogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, source_code, recipient_code, distance, reward_kind, amount, created_at
		 FROM distribution_log
		 WHERE order_id = ? AND recipient_code = ? AND distance = ? AND reward_kind = ?`,
		orderID,
		recipientCode,
		distance,
		kind,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry
	err := db.WithContext(ctx).
		Model(&domain.LogEntry{}).
		Where("order_id = ?", orderID).
		Order("distance asc, reward_kind desc, recipient_code asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
