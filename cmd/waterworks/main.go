package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waterworks/internal/billing"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	"github.com/smallbiznis/waterworks/internal/disconnection"
	"github.com/smallbiznis/waterworks/internal/ledger"
	"github.com/smallbiznis/waterworks/internal/locking"
	"github.com/smallbiznis/waterworks/internal/logger"
	"github.com/smallbiznis/waterworks/internal/meterreading"
	"github.com/smallbiznis/waterworks/internal/migration"
	"github.com/smallbiznis/waterworks/internal/othercharge"
	"github.com/smallbiznis/waterworks/internal/payment"
	"github.com/smallbiznis/waterworks/internal/penalty"
	"github.com/smallbiznis/waterworks/internal/rate"
	"github.com/smallbiznis/waterworks/internal/scheduler"
	"github.com/smallbiznis/waterworks/internal/server"
	"github.com/smallbiznis/waterworks/internal/subscriber"
	"github.com/smallbiznis/waterworks/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(locking.NewKeyedMutex),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		subscriber.Module,
		rate.Module,
		meterreading.Module,
		othercharge.Module,
		ledger.Module,
		billing.Module,
		payment.Module,
		penalty.Module,
		disconnection.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
