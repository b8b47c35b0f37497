// Package seed bootstraps the minimum data a fresh deployment needs: the
// default fee plan every unassigned partner bills under.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	custdomain "github.com/gaihekinavi/platform/internal/customerinvoice/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
	"gorm.io/gorm"
)

const (
	defaultPlanName           = "スタンダードプラン"
	defaultPlanMonthlyFee     = 5000
	defaultPlanPerOrderFee    = 1000
	defaultPlanPerProjectFee  = 3000
	defaultPlanProjectFeeRate = 0.05
)

// AutoMigrate syncs the schema from the models. Used for sqlite deployments
// where the postgres migrations do not apply.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return db.AutoMigrate(
		&partnerdomain.Partner{},
		&partnerdomain.FeePlan{},
		&orderdomain.DiagnosisRequest{},
		&orderdomain.Order{},
		&depositdomain.Balance{},
		&depositdomain.Entry{},
		&depositdomain.Request{},
		&referraldomain.Referral{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceOrderLink{},
		&custdomain.CustomerInvoice{},
		&custdomain.CustomerInvoiceItem{},
		&auditdomain.AuditLog{},
	)
}

// EnsureDefaultFeePlan creates the default plan when no plan is marked
// default yet. Existing plans are never touched.
func EnsureDefaultFeePlan(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&partnerdomain.FeePlan{}).Where("is_default = ?", true).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.Create(&partnerdomain.FeePlan{
			ID:             node.Generate(),
			Name:           defaultPlanName,
			MonthlyFee:     defaultPlanMonthlyFee,
			PerOrderFee:    defaultPlanPerOrderFee,
			PerProjectFee:  defaultPlanPerProjectFee,
			ProjectFeeRate: defaultPlanProjectFeeRate,
			IsDefault:      true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}).Error
	})
}
