package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *invoiceFixture) generateDraft(t *testing.T) invoicedomain.Invoice {
	t.Helper()
	plan := f.createPlan(t, 5000, 1000, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
	f.createOrder(t, partner.ID, time.Date(2026, time.August, 5, 0, 0, 0, 0, time.UTC), nil, 0)

	results, err := f.svc.GenerateMonthly(context.Background(), invoicedomain.GenerateInput{
		Year:  2026,
		Month: time.August,
	})
	require.NoError(t, err)
	require.NotNil(t, results[0].Invoice)
	return *results[0].Invoice
}

func TestIssue_StampsIssueAndDueDates(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)

	issued, err := f.svc.Issue(context.Background(), draft.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusUnpaid, issued.Status)
	require.NotNil(t, issued.IssueDate)
	assert.Equal(t, f.clock.Now(), issued.IssueDate.UTC())
	require.NotNil(t, issued.DueDate)
	// Clock sits mid-August; the due date is the payment day of September.
	assert.Equal(t, time.Date(2026, time.September, 20, 0, 0, 0, 0, time.UTC), issued.DueDate.UTC())
}

func TestIssue_KeepsOriginalDatesOnReissue(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)
	require.NotNil(t, issued.IssueDate)
	firstIssue := issued.IssueDate.UTC()
	firstDue := issued.DueDate.UTC()

	// An admin pulls the invoice back to DRAFT and issues it again later.
	_, err = f.svc.Override(ctx, draft.ID, invoicedomain.StatusDraft, "admin")
	require.NoError(t, err)
	f.clock.Advance(10 * 24 * time.Hour)

	reissued, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)
	require.NotNil(t, reissued.IssueDate)
	assert.Equal(t, firstIssue, reissued.IssueDate.UTC())
	assert.Equal(t, firstDue, reissued.DueDate.UTC())
}

func TestIssue_NonDraftRejected(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, draft.ID, "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrNotDraft)
}

func TestMarkPaid_FromUnpaidAndOverdue(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	_, err := f.svc.MarkPaid(ctx, draft.ID, "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	_, err = f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.MarkOverdue(ctx, draft.ID)
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(ctx, draft.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, f.clock.Now(), paid.PaymentDate.UTC())
}

func TestPaidIsTerminal(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, draft.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, draft.ID, "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	_, err = f.svc.MarkOverdue(ctx, draft.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStateTransition)

	_, err = f.svc.Override(ctx, draft.ID, invoicedomain.StatusUnpaid, "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrTerminalStatus)
}

func TestCancelledIsTerminal(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, draft.ID, "admin")
	require.NoError(t, err)

	_, err = f.svc.Override(ctx, draft.ID, invoicedomain.StatusDraft, "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrTerminalStatus)
}

func TestOverride_ForcesStatusOutsideMatrix(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	// DRAFT -> PAID is not a normal transition, but an admin can force it.
	paid, err := f.svc.Override(ctx, draft.ID, invoicedomain.StatusPaid, "admin")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)
}

func TestOverride_UnknownStatusRejected(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)

	_, err := f.svc.Override(context.Background(), draft.ID, invoicedomain.Status("SHIPPED"), "admin")
	assert.ErrorIs(t, err, invoicedomain.ErrUnknownStatus)
}

func TestIssueMany_ContinuesPastFailures(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	// Pre-issue so the batch sees a non-draft invoice first.
	_, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)

	plan := f.createPlan(t, 8000, 0, 0, 0)
	partner := f.createPartner(t, &plan.ID, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
	generated, err := f.svc.GenerateMonthly(ctx, invoicedomain.GenerateInput{
		Year:       2026,
		Month:      time.August,
		PartnerIDs: []snowflake.ID{partner.ID},
	})
	require.NoError(t, err)
	require.NotNil(t, generated[0].Invoice)
	second := *generated[0].Invoice

	results := f.svc.IssueMany(ctx, []snowflake.ID{draft.ID, second.ID}, "admin")
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, invoicedomain.ErrNotDraft)
	assert.NoError(t, results[1].Err)

	reloaded, err := f.svc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusUnpaid, reloaded.Status)
}

func TestSweepOverdue_FlipsOnlyPastDueUnpaid(t *testing.T) {
	f := setupInvoice(t)
	draft := f.generateDraft(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, draft.ID, "admin")
	require.NoError(t, err)

	// Before the due date nothing moves.
	moved, err := f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), moved)

	// Jump past September 20.
	f.clock.Advance(45 * 24 * time.Hour)

	moved, err = f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	reloaded, err := f.svc.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusOverdue, reloaded.Status)

	moved, err = f.svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), moved)
}
