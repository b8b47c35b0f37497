package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
)

// GenerateInput scopes one generation run. Year and Month select the billing
// period for monthly mode; unbilled mode ignores them. An empty PartnerIDs
// targets every active partner.
type GenerateInput struct {
	Year        int
	Month       time.Month
	PartnerIDs  []snowflake.ID
	GeneratedBy string
}

// GenerateResult is the per-partner outcome of a generation run. One
// partner's failure never aborts the rest of the batch.
type GenerateResult struct {
	PartnerID snowflake.ID
	Invoice   *Invoice
	Skipped   bool
	Err       error
}

// IssueResult is the per-invoice outcome of a batch issue.
type IssueResult struct {
	InvoiceID snowflake.ID
	Err       error
}

type ListInvoicesRequest struct {
	pagination.Pagination
	PartnerID snowflake.ID
	Status    Status
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	// GenerateMonthly creates DRAFT invoices for one calendar month. Orders
	// already carried by a non-cancelled invoice are excluded, so re-running
	// a period creates nothing new.
	GenerateMonthly(ctx context.Context, in GenerateInput) ([]GenerateResult, error)

	// GenerateUnbilled sweeps each partner's window since their last billed
	// period and invoices whatever monthly generation missed.
	GenerateUnbilled(ctx context.Context, in GenerateInput) ([]GenerateResult, error)

	// Issue moves a DRAFT invoice to UNPAID, stamping issue and due dates.
	Issue(ctx context.Context, invoiceID snowflake.ID, issuedBy string) (Invoice, error)
	IssueMany(ctx context.Context, invoiceIDs []snowflake.ID, issuedBy string) []IssueResult

	MarkPaid(ctx context.Context, invoiceID snowflake.ID, markedBy string) (Invoice, error)
	MarkOverdue(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
	Cancel(ctx context.Context, invoiceID snowflake.ID, cancelledBy string) (Invoice, error)

	// Override lets an administrator force a status outside the normal
	// transitions, except off the terminal states.
	Override(ctx context.Context, invoiceID snowflake.ID, to Status, overriddenBy string) (Invoice, error)

	// SweepOverdue flips every UNPAID invoice past its due date to OVERDUE
	// and returns how many moved.
	SweepOverdue(ctx context.Context) (int64, error)

	GetByID(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)
	Items(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceItem, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
}

var (
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrNotDraft               = errors.New("invoice_not_draft")
	ErrInvalidStateTransition = errors.New("invalid_state_transition")
	ErrUnknownStatus          = errors.New("unknown_status")
	ErrTerminalStatus         = errors.New("terminal_status")
	ErrInvalidPeriod          = errors.New("invalid_period")
)
