package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinLevel = 1
	MaxLevel = 6
)

// capacities is the fixed geometric capacity table: capacity(1) = 1,
// capacity(L) = 5^(L-1) for L >= 2. Immutable at runtime.
var capacities = [MaxLevel]int64{1, 5, 25, 125, 625, 3125}

// ValidLevel reports whether level is within the configured tree depth.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// Capacity returns the fixed capacity for a level. Callers must validate
// the level first; out-of-range levels return 0.
func Capacity(level int) int64 {
	if !ValidLevel(level) {
		return 0
	}
	return capacities[level-1]
}

// LevelConfig is the persisted per-level occupancy row. Capacity is seeded
// from the static table at migration time; Filled is the authoritative
// occupancy counter gated by conditional updates.
type LevelConfig struct {
	Level     int       `gorm:"primaryKey" json:"level"`
	Capacity  int64     `gorm:"not null" json:"capacity"`
	Filled    int64     `gorm:"not null;default:0" json:"filled"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LevelConfig) TableName() string {
	return "level_configs"
}

// LevelOccupancy is the reporting view of one level.
type LevelOccupancy struct {
	Level    int   `json:"level"`
	Filled   int64 `json:"filled"`
	Capacity int64 `json:"capacity"`
}

// OccupancySnapshot maps level to its occupancy, for dashboards. It may be
// slightly stale; gating decisions never read it.
type OccupancySnapshot struct {
	Levels []LevelOccupancy `json:"levels"`
}

var (
	ErrInvalidLevel     = errors.New("invalid_level")
	ErrCapacityExceeded = errors.New("capacity_exceeded")
)

// CapacityExceededError carries the violated constraint so callers can
// report which level is full without re-deriving state.
type CapacityExceededError struct {
	Level    int
	Capacity int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("level %d is full (%d/%d)", e.Level, e.Capacity, e.Capacity)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}
