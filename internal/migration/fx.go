package migration

import (
	"github.com/gaihekinavi/platform/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// The SQL migrations target postgres; sqlite deployments (tests,
		// throwaway dev instances) schema-sync from the models instead.
		if conn.Dialector.Name() == "sqlite" {
			if err := seed.AutoMigrate(conn); err != nil {
				return err
			}
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultFeePlan(conn)
	}),
)
