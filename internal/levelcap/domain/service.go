package domain

import (
	"context"

	"gorm.io/gorm"
)

type Service interface {
	// Capacity returns the fixed geometric capacity for a level.
	Capacity(level int) (int64, error)
	// Occupancy returns the current fill of a single level.
	Occupancy(ctx context.Context, level int) (int64, error)
	// Snapshot returns the per-level fill for reporting.
	Snapshot(ctx context.Context) (OccupancySnapshot, error)
	// ReserveSlot atomically claims a slot at the level, within the caller's
	// transaction, or fails with a CapacityExceededError.
	ReserveSlot(ctx context.Context, tx *gorm.DB, level int) error
	// ReleaseSlot frees a slot previously claimed at the level.
	ReleaseSlot(ctx context.Context, tx *gorm.DB, level int) error
}
