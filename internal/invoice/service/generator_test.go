package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	partnerservice "github.com/gaihekinavi/platform/internal/partner/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type invoiceFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   invoicedomain.Service
}

func setupInvoice(t *testing.T) *invoiceFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, dbConn.AutoMigrate(
		&partnerdomain.Partner{},
		&partnerdomain.FeePlan{},
		&orderdomain.DiagnosisRequest{},
		&orderdomain.Order{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceOrderLink{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC))

	partnerSvc := partnerservice.New(partnerservice.Params{DB: dbConn, Log: log, GenID: node})

	cfg := config.Config{
		Billing: config.BillingConfig{
			TaxRate:            0.10,
			PaymentDay:         20,
			DefaultReferralFee: 30000,
		},
	}

	svc := New(Params{
		DB:         dbConn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Config:     cfg,
		PartnerSvc: partnerSvc,
	})

	return &invoiceFixture{db: dbConn, node: node, clock: fake, svc: svc}
}

func (f *invoiceFixture) createPlan(t *testing.T, monthly, perOrder, perProject int64, rate float64) partnerdomain.FeePlan {
	t.Helper()
	plan := partnerdomain.FeePlan{
		ID:             f.node.Generate(),
		Name:           "スタンダード",
		MonthlyFee:     monthly,
		PerOrderFee:    perOrder,
		PerProjectFee:  perProject,
		ProjectFeeRate: rate,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&plan).Error)
	return plan
}

func (f *invoiceFixture) createPartner(t *testing.T, planID *snowflake.ID, createdAt time.Time) partnerdomain.Partner {
	t.Helper()
	partner := partnerdomain.Partner{
		ID:          f.node.Generate(),
		CompanyName: "テスト塗装株式会社",
		Email:       fmt.Sprintf("partner-%s@example.com", f.node.Generate()),
		Prefecture:  "東京都",
		Active:      true,
		FeePlanID:   planID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, f.db.Create(&partner).Error)
	return partner
}

func (f *invoiceFixture) createOrder(t *testing.T, partnerID snowflake.ID, createdAt time.Time, completedAt *time.Time, revenue int64) orderdomain.Order {
	t.Helper()
	status := orderdomain.OrderStatusOrdered
	if completedAt != nil {
		status = orderdomain.OrderStatusCompleted
	}
	order := orderdomain.Order{
		ID:          f.node.Generate(),
		DiagnosisID: f.node.Generate(),
		PartnerID:   partnerID,
		Status:      status,
		Revenue:     revenue,
		CompletedAt: completedAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, f.db.Create(&order).Error)
	return order
}

func (f *invoiceFixture) invoiceCount(t *testing.T, partnerID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("partner_id = ?", partnerID).Count(&count).Error)
	return count
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestGenerateMonthly_BuildsInvoiceWithBreakdown(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 1000, 3000, 0.05)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	aug := time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC)
	f.createOrder(t, partner.ID, aug, nil, 0)
	f.createOrder(t, partner.ID, aug.AddDate(0, 0, 1), nil, 0)
	f.createOrder(t, partner.ID, aug.AddDate(0, 0, 2), ptrTime(aug.AddDate(0, 0, 10)), 100000)
	f.createOrder(t, partner.ID, aug.AddDate(0, 0, 3), ptrTime(aug.AddDate(0, 0, 12)), 100000)

	results, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Invoice)

	invoice := *results[0].Invoice
	assert.Equal(t, "COMP-202608-0001", invoice.InvoiceNumber)
	assert.Equal(t, invoicedomain.StatusDraft, invoice.Status)
	// 5000 monthly + 4*1000 orders + 2*3000 projects + 5% of 200000
	assert.Equal(t, int64(25000), invoice.Subtotal)
	assert.Equal(t, int64(2500), invoice.TaxAmount)
	assert.Equal(t, int64(27500), invoice.GrandTotal)
	assert.Equal(t, invoice.Subtotal+invoice.TaxAmount, invoice.GrandTotal)

	items, err := f.svc.Items(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, items, 4)
	var itemTotal int64
	for _, item := range items {
		itemTotal += item.Amount
	}
	assert.Equal(t, invoice.Subtotal, itemTotal)

	var orderLinks, projectLinks int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceOrderLink{}).
		Where("invoice_id = ? AND kind = ?", invoice.ID, invoicedomain.LinkKindOrder).Count(&orderLinks).Error)
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceOrderLink{}).
		Where("invoice_id = ? AND kind = ?", invoice.ID, invoicedomain.LinkKindProject).Count(&projectLinks).Error)
	assert.Equal(t, int64(4), orderLinks)
	assert.Equal(t, int64(2), projectLinks)
}

func TestGenerateMonthly_SecondRunCreatesNothing(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 1000, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
	f.createOrder(t, partner.ID, time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC), nil, 0)

	in := invoicedomain.GenerateInput{Year: 2026, Month: time.August}
	first, err := f.svc.GenerateMonthly(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first[0].Invoice)

	second, err := f.svc.GenerateMonthly(ctx, in)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].Skipped)
	assert.Nil(t, second[0].Invoice)
	assert.Equal(t, int64(1), f.invoiceCount(t, partner.ID))
}

func TestGenerateMonthly_CancelledInvoiceReleasesPeriod(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 1000, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
	f.createOrder(t, partner.ID, time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC), nil, 0)

	in := invoicedomain.GenerateInput{Year: 2026, Month: time.August}
	first, err := f.svc.GenerateMonthly(ctx, in)
	require.NoError(t, err)
	original := *first[0].Invoice

	_, err = f.svc.Cancel(ctx, original.ID, "admin")
	require.NoError(t, err)

	second, err := f.svc.GenerateMonthly(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, second[0].Invoice)
	regenerated := *second[0].Invoice
	assert.Equal(t, "COMP-202608-0002", regenerated.InvoiceNumber)
	assert.Equal(t, original.Subtotal, regenerated.Subtotal)
	assert.Equal(t, original.GrandTotal, regenerated.GrandTotal)
}

func TestGenerateMonthly_ZeroTotalSkipped(t *testing.T) {
	f := setupInvoice(t)
	plan := f.createPlan(t, 0, 0, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	results, err := f.svc.GenerateMonthly(context.Background(), invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, int64(0), f.invoiceCount(t, partner.ID))
}

func TestGenerateMonthly_MonthlyFeeChargedWithZeroUsage(t *testing.T) {
	f := setupInvoice(t)
	plan := f.createPlan(t, 5000, 1000, 3000, 0.05)
	f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	results, err := f.svc.GenerateMonthly(context.Background(), invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.NotNil(t, results[0].Invoice)
	assert.Equal(t, int64(5000), results[0].Invoice.Subtotal)
}

func TestGenerateMonthly_OrderBilledOncePerFeeKind(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 0, 1000, 3000, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	// Ordered in August, completed in September.
	order := f.createOrder(t, partner.ID,
		time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		ptrTime(time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)),
		150000,
	)

	augResults, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.NotNil(t, augResults[0].Invoice)
	assert.Equal(t, int64(1000), augResults[0].Invoice.Subtotal)

	sepResults, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.September})
	require.NoError(t, err)
	require.NotNil(t, sepResults[0].Invoice)
	assert.Equal(t, int64(3000), sepResults[0].Invoice.Subtotal)

	var links []invoicedomain.InvoiceOrderLink
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Order("created_at ASC").Find(&links).Error)
	require.Len(t, links, 2)
	assert.Equal(t, invoicedomain.LinkKindOrder, links[0].Kind)
	assert.Equal(t, invoicedomain.LinkKindProject, links[1].Kind)
}

func TestGenerateUnbilled_SweepsMissedUsageWithoutMonthlyFee(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 1000, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))

	// July usage that no monthly run ever billed.
	f.createOrder(t, partner.ID, time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC), nil, 0)
	f.createOrder(t, partner.ID, time.Date(2026, time.July, 12, 0, 0, 0, 0, time.UTC), nil, 0)

	results, err := f.svc.GenerateUnbilled(ctx, invoicedomain.GenerateInput{})
	require.NoError(t, err)
	require.NotNil(t, results[0].Invoice)
	// Two order fees, no monthly base fee in catch-up mode.
	assert.Equal(t, int64(2000), results[0].Invoice.Subtotal)

	again, err := f.svc.GenerateUnbilled(ctx, invoicedomain.GenerateInput{})
	require.NoError(t, err)
	assert.True(t, again[0].Skipped)
	assert.Equal(t, int64(1), f.invoiceCount(t, partner.ID))
}

func TestGenerate_OnePartnerFailureDoesNotAbortBatch(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 0, 0, 0)

	// Created first so partner listing yields it first.
	broken := f.createPartner(t, nil, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
	healthy := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	results, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPartner := map[snowflake.ID]invoicedomain.GenerateResult{}
	for _, result := range results {
		byPartner[result.PartnerID] = result
	}
	// No plan assigned and no default plan configured.
	assert.ErrorIs(t, byPartner[broken.ID].Err, partnerdomain.ErrNoDefaultPlan)
	require.NotNil(t, byPartner[healthy.ID].Invoice)
	assert.Equal(t, int64(5000), byPartner[healthy.ID].Invoice.Subtotal)
}

func TestGenerateMonthly_NumbersCountPastFourDigits(t *testing.T) {
	f := setupInvoice(t)
	ctx := context.Background()
	plan := f.createPlan(t, 5000, 1000, 3000, 0.05)
	f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	// A busy period that has already consumed the four-digit suffix range.
	window := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	for _, number := range []string{"COMP-202608-9999", "COMP-202608-10000"} {
		require.NoError(t, f.db.Create(&invoicedomain.Invoice{
			ID:            f.node.Generate(),
			InvoiceNumber: number,
			PartnerID:     f.node.Generate(),
			PeriodStart:   window,
			PeriodEnd:     window.AddDate(0, 1, 0),
			Status:        invoicedomain.StatusUnpaid,
			CreatedAt:     window,
			UpdatedAt:     window,
		}).Error)
	}

	results, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{Year: 2026, Month: time.August})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Invoice)
	assert.Equal(t, "COMP-202608-10001", results[0].Invoice.InvoiceNumber)
}
