package seed

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/loyaltree/internal/config"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureLevelConfigs seeds the level-capacity table from the static
// geometric capacities. Existing rows are left untouched so occupancy
// counters survive restarts.
func EnsureLevelConfigs(conn *gorm.DB) error {
	now := time.Now().UTC()
	for level := levelcapdomain.MinLevel; level <= levelcapdomain.MaxLevel; level++ {
		row := levelcapdomain.LevelConfig{
			Level:     level,
			Capacity:  levelcapdomain.Capacity(level),
			Filled:    0,
			UpdatedAt: now,
		}
		if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureRootMember provisions the configured root member when the tree is
// empty, claiming its level-1 slot.
func EnsureRootMember(conn *gorm.DB, cfg config.Config) error {
	var count int64
	if err := conn.Model(&memberdomain.Member{}).
		Where("parent_code IS NULL").
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	return conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE level_configs SET filled = filled + 1, updated_at = ?
			 WHERE level = ? AND filled < capacity`,
			now,
			levelcapdomain.MinLevel,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &levelcapdomain.CapacityExceededError{
				Level:    levelcapdomain.MinLevel,
				Capacity: levelcapdomain.Capacity(levelcapdomain.MinLevel),
			}
		}

		root := memberdomain.Member{
			Code:                  cfg.RootMemberCode,
			Level:                 levelcapdomain.MinLevel,
			Tier:                  memberdomain.TierBronze,
			TotalSpent:            decimal.Zero,
			AccumulatedPointMoney: decimal.Zero,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		return tx.Create(&root).Error
	})
}
