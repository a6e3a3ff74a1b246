package migration

import (
	"github.com/smallbiznis/loyaltree/internal/config"
	distributiondomain "github.com/smallbiznis/loyaltree/internal/distribution/domain"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	purchasedomain "github.com/smallbiznis/loyaltree/internal/purchase/domain"
	"github.com/smallbiznis/loyaltree/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite/mysql development targets use gorm's schema sync.
			if err := conn.AutoMigrate(
				&memberdomain.Member{},
				&levelcapdomain.LevelConfig{},
				&ledgerdomain.CoinTransaction{},
				&ledgerdomain.CoinWallet{},
				&distributiondomain.LogEntry{},
				&purchasedomain.PurchaseOrder{},
			); err != nil {
				return err
			}
		}

		if err := seed.EnsureLevelConfigs(conn); err != nil {
			return err
		}
		return seed.EnsureRootMember(conn, cfg)
	}),
)
