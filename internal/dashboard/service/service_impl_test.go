package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	dashboarddomain "github.com/gaihekinavi/platform/internal/dashboard/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	depositservice "github.com/gaihekinavi/platform/internal/deposit/service"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	invoiceservice "github.com/gaihekinavi/platform/internal/invoice/service"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	orderservice "github.com/gaihekinavi/platform/internal/order/service"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	partnerservice "github.com/gaihekinavi/platform/internal/partner/service"
	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type dashboardFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	svc        dashboarddomain.Service
	invoiceSvc invoicedomain.Service
	depositSvc depositdomain.Service
}

func setupDashboard(t *testing.T) *dashboardFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, dbConn.AutoMigrate(
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
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC))

	cfg := config.Config{Billing: config.BillingConfig{TaxRate: 0.10, PaymentDay: 20, DefaultReferralFee: 30000}}

	partnerSvc := partnerservice.New(partnerservice.Params{DB: dbConn, Log: log, GenID: node})
	orderSvc := orderservice.New(orderservice.Params{DB: dbConn, Log: log})
	depositSvc := depositservice.New(depositservice.Params{DB: dbConn, Log: log, GenID: node})
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB: dbConn, Log: log, GenID: node, Clock: fake, Config: cfg, PartnerSvc: partnerSvc,
	})

	svc := New(Params{
		DB:         dbConn,
		Log:        log,
		Clock:      fake,
		PartnerSvc: partnerSvc,
		OrderSvc:   orderSvc,
		DepositSvc: depositSvc,
	})

	return &dashboardFixture{db: dbConn, node: node, clock: fake, svc: svc, invoiceSvc: invoiceSvc, depositSvc: depositSvc}
}

func (f *dashboardFixture) seedPartnerWithUsage(t *testing.T) partnerdomain.Partner {
	t.Helper()
	plan := partnerdomain.FeePlan{
		ID: f.node.Generate(), Name: "スタンダード",
		MonthlyFee: 5000, PerOrderFee: 1000, PerProjectFee: 3000, ProjectFeeRate: 0.05,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&plan).Error)

	partner := partnerdomain.Partner{
		ID:          f.node.Generate(),
		CompanyName: "テスト塗装株式会社",
		Email:       fmt.Sprintf("partner-%s@example.com", f.node.Generate()),
		Active:      true,
		FeePlanID:   &plan.ID,
		CreatedAt:   time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.db.Create(&partner).Error)

	aug := time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC)
	completed := aug.AddDate(0, 0, 10)
	for i := 0; i < 2; i++ {
		order := orderdomain.Order{
			ID: f.node.Generate(), DiagnosisID: f.node.Generate(), PartnerID: partner.ID,
			Status: orderdomain.OrderStatusOrdered, CreatedAt: aug.AddDate(0, 0, i), UpdatedAt: aug,
		}
		require.NoError(t, f.db.Create(&order).Error)
	}
	for i := 0; i < 2; i++ {
		order := orderdomain.Order{
			ID: f.node.Generate(), DiagnosisID: f.node.Generate(), PartnerID: partner.ID,
			Status: orderdomain.OrderStatusCompleted, Revenue: 100000,
			CompletedAt: &completed, CreatedAt: aug.AddDate(0, 0, 2+i), UpdatedAt: aug,
		}
		require.NoError(t, f.db.Create(&order).Error)
	}
	return partner
}

func TestPartnerSummaries_MatchGeneratedInvoice(t *testing.T) {
	f := setupDashboard(t)
	ctx := context.Background()
	partner := f.seedPartnerWithUsage(t)

	summaries, err := f.svc.PartnerSummaries(ctx, 2026, time.August)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	preview := summaries[0]
	assert.Equal(t, partner.ID, preview.PartnerID)
	assert.Equal(t, int64(4), preview.OrderCount)
	assert.Equal(t, int64(2), preview.ProjectCount)
	assert.Equal(t, int64(200000), preview.ProjectRevenue)

	results, err := f.invoiceSvc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.NotNil(t, results[0].Invoice)

	// The preview promised exactly what generation billed.
	assert.Equal(t, preview.EstimatedFees, results[0].Invoice.Subtotal)
}

func TestOverview_AggregatesCountsAndBalances(t *testing.T) {
	f := setupDashboard(t)
	ctx := context.Background()
	partner := f.seedPartnerWithUsage(t)

	require.NoError(t, f.depositSvc.EnsureBalance(ctx, partner.ID))
	_, err := f.depositSvc.Credit(ctx, depositdomain.CreditInput{PartnerID: partner.ID, Amount: 50000})
	require.NoError(t, err)

	diagnosis := orderdomain.DiagnosisRequest{
		ID: f.node.Generate(), DiagnosisNumber: "D-0001", CustomerName: "山田太郎",
		Status: orderdomain.DiagnosisStatusDecided,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&diagnosis).Error)

	referral := referraldomain.Referral{
		ID: f.node.Generate(), DiagnosisID: diagnosis.ID, PartnerID: partner.ID,
		ReferralFee: 30000, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&referral).Error)

	overview, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), overview.TotalReferralFees)
	assert.Equal(t, int64(50000), overview.TotalDepositBalance)
	assert.Equal(t, int64(1), overview.DiagnosisCount)
	assert.Equal(t, int64(1), overview.ReferralCount)
	assert.Equal(t, int64(1), overview.DecidedCount)
	assert.Equal(t, int64(1), overview.ActivePartners)
}

func TestMonthlyTrend_OldestFirst(t *testing.T) {
	f := setupDashboard(t)
	f.seedPartnerWithUsage(t)

	points, err := f.svc.MonthlyTrend(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, time.June, points[0].Month)
	assert.Equal(t, time.July, points[1].Month)
	assert.Equal(t, time.August, points[2].Month)

	// All seeded usage sits in August.
	assert.Equal(t, int64(0), points[1].OrderCount)
	assert.Equal(t, int64(4), points[2].OrderCount)
	assert.Equal(t, int64(2), points[2].CompletedCount)
	assert.Equal(t, int64(200000), points[2].Revenue)

	_, err = f.svc.MonthlyTrend(context.Background(), 0)
	assert.ErrorIs(t, err, dashboarddomain.ErrInvalidRange)
}
