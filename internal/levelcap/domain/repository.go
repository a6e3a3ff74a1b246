package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Reserve atomically increments the occupancy counter when a slot is
	// free. It reports false when the level is already full.
	Reserve(ctx context.Context, db *gorm.DB, level int) (bool, error)
	// Release decrements the occupancy counter, flooring at zero.
	Release(ctx context.Context, db *gorm.DB, level int) error
	List(ctx context.Context, db *gorm.DB) ([]LevelConfig, error)
	Find(ctx context.Context, db *gorm.DB, level int) (*LevelConfig, error)
}
