// Package domain contains company invoice models: the monthly commission
// invoices the platform bills to partners.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is an invoice's lifecycle state. DRAFT invoices are editable and
// invisible to partners; issuing moves them to UNPAID. PAID and CANCELLED are
// terminal.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusUnpaid    Status = "UNPAID"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

// Known reports whether s is one of the defined lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusDraft, StatusUnpaid, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Invoice is one billing-period commission invoice to a partner. Amounts are
// whole yen and GrandTotal always equals Subtotal + TaxAmount.
type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	InvoiceNumber string       `gorm:"type:text;not null;uniqueIndex"`
	PartnerID     snowflake.ID `gorm:"not null;index"`
	PeriodStart   time.Time    `gorm:"not null"`
	PeriodEnd     time.Time    `gorm:"not null"`
	Subtotal      int64        `gorm:"not null"`
	TaxAmount     int64        `gorm:"not null"`
	GrandTotal    int64        `gorm:"not null"`
	Status        Status       `gorm:"type:text;not null;default:'DRAFT';index"`
	IssueDate     *time.Time   `gorm:""`
	DueDate       *time.Time   `gorm:"index"`
	PaymentDate   *time.Time   `gorm:""`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "company_invoices" }

// InvoiceItem is one line of an invoice's commission breakdown.
type InvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text;not null"`
	Amount      int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "company_invoice_items" }

// LinkKind marks which fee component an order was billed under. An order is
// billed once per kind: its order fee the month it was placed, its project
// fees the month it completed.
type LinkKind string

const (
	LinkKindOrder   LinkKind = "order"
	LinkKindProject LinkKind = "project"
)

// InvoiceOrderLink records that an order was carried by an invoice for one
// fee kind. Tallies with billed-exclusion consult these rows, so links are
// the durable marker that keeps re-generation from double-billing.
type InvoiceOrderLink struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_order_links,priority:1"`
	OrderID   snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_order_links,priority:2;index"`
	Kind      LinkKind     `gorm:"type:text;not null;uniqueIndex:ux_invoice_order_links,priority:3"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceOrderLink) TableName() string { return "invoice_order_links" }
