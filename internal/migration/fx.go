package migration

import (
	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/config"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	"github.com/smallbiznis/waterworks/internal/seed"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// mysql and sqlite installs fall back to the ORM schema.
			if err := conn.AutoMigrate(
				&subscriberdomain.Subscriber{},
				&ratedomain.WaterRate{},
				&readingdomain.MeterReading{},
				&chargedomain.OtherCharge{},
				&billingdomain.Bill{},
				&ledgerdomain.LedgerEntry{},
				&disconnectiondomain.DisconnectionNotice{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedRates {
			return seed.EnsureDefaultRates(conn, genID)
		}
		return nil
	}),
)
