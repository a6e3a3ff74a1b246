package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Reserve(ctx context.Context, db *gorm.DB, level int) (bool, error) {
	// Single conditional update; never a separate read-then-write.
	res := db.WithContext(ctx).Exec(
		`UPDATE level_configs SET filled = filled + 1, updated_at = ?
		 WHERE level = ? AND filled < capacity`,
		time.Now().UTC(),
		level,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, level int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE level_configs SET filled = filled - 1, updated_at = ?
		 WHERE level = ? AND filled > 0`,
		time.Now().UTC(),
		level,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.LevelConfig, error) {
	var rows []domain.LevelConfig
	err := db.WithContext(ctx).
		Model(&domain.LevelConfig{}).
		Order("level asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, level int) (*domain.LevelConfig, error) {
	var cfg domain.LevelConfig
	err := db.WithContext(ctx).Raw(
		`SELECT level, capacity, filled, updated_at FROM level_configs WHERE level = ?`,
		level,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.Level == 0 {
		return nil, nil
	}
	return &cfg, nil
}
