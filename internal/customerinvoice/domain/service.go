package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
)

type ItemInput struct {
	Description string
	Amount      int64
}

// CreateInput describes one customer invoice. PartnerID must own the order.
type CreateInput struct {
	OrderID      snowflake.ID
	PartnerID    snowflake.ID
	CustomerName string
	Items        []ItemInput
}

type ListInvoicesRequest struct {
	pagination.Pagination
	PartnerID snowflake.ID
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []CustomerInvoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (CustomerInvoice, error)
	MarkPaid(ctx context.Context, invoiceID snowflake.ID) (CustomerInvoice, error)
	GetByID(ctx context.Context, invoiceID snowflake.ID) (CustomerInvoice, error)
	Items(ctx context.Context, invoiceID snowflake.ID) ([]CustomerInvoiceItem, error)
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
}

var (
	ErrNotFound        = errors.New("customer_invoice_not_found")
	ErrNotOrderOwner   = errors.New("not_order_owner")
	ErrAlreadyInvoiced = errors.New("order_already_invoiced")
	ErrAlreadyPaid     = errors.New("invoice_already_paid")
	ErrNoItems         = errors.New("invoice_has_no_items")
	ErrInvalidItem     = errors.New("invalid_invoice_item")
)
