package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/audit"
	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	"github.com/gaihekinavi/platform/internal/customerinvoice"
	"github.com/gaihekinavi/platform/internal/dashboard"
	"github.com/gaihekinavi/platform/internal/deposit"
	"github.com/gaihekinavi/platform/internal/invoice"
	"github.com/gaihekinavi/platform/internal/logger"
	"github.com/gaihekinavi/platform/internal/migration"
	"github.com/gaihekinavi/platform/internal/notification"
	"github.com/gaihekinavi/platform/internal/observability/metrics"
	"github.com/gaihekinavi/platform/internal/order"
	"github.com/gaihekinavi/platform/internal/partner"
	"github.com/gaihekinavi/platform/internal/referral"
	"github.com/gaihekinavi/platform/internal/scheduler"
	"github.com/gaihekinavi/platform/internal/server"
	"github.com/gaihekinavi/platform/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,

		audit.Module,
		partner.Module,
		order.Module,
		deposit.Module,
		notification.Module,
		referral.Module,
		invoice.Module,
		customerinvoice.Module,
		dashboard.Module,
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
