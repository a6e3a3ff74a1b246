package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/loyaltree/internal/clock"
	"github.com/smallbiznis/loyaltree/internal/config"
	"github.com/smallbiznis/loyaltree/internal/distribution"
	"github.com/smallbiznis/loyaltree/internal/ledger"
	"github.com/smallbiznis/loyaltree/internal/levelcap"
	"github.com/smallbiznis/loyaltree/internal/member"
	"github.com/smallbiznis/loyaltree/internal/migration"
	"github.com/smallbiznis/loyaltree/internal/observability"
	"github.com/smallbiznis/loyaltree/internal/purchase"
	"github.com/smallbiznis/loyaltree/internal/server"
	"github.com/smallbiznis/loyaltree/internal/telemetry"
	"github.com/smallbiznis/loyaltree/pkg/db"
	"github.com/smallbiznis/loyaltree/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain modules, leaf-first
		levelcap.Module,
		member.Module,
		ledger.Module,
		distribution.Module,
		purchase.Module,

		// HTTP surface
		server.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
