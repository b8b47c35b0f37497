// Package domain contains customer invoice models: the invoices partners
// issue to their own customers for completed work, numbered per calendar
// year.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is a customer invoice's payment state. These invoices are issued on
// creation, so the lifecycle is just ISSUED then PAID.
type Status string

const (
	StatusIssued Status = "ISSUED"
	StatusPaid   Status = "PAID"
)

// CustomerInvoice is one partner-to-customer invoice. At most one exists per
// order and GrandTotal always equals Subtotal + TaxAmount.
type CustomerInvoice struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	InvoiceNumber string       `gorm:"type:text;not null;uniqueIndex"`
	OrderID       snowflake.ID `gorm:"not null;uniqueIndex"`
	PartnerID     snowflake.ID `gorm:"not null;index"`
	CustomerName  string       `gorm:"type:text;not null"`
	Subtotal      int64        `gorm:"not null"`
	TaxAmount     int64        `gorm:"not null"`
	GrandTotal    int64        `gorm:"not null"`
	Status        Status       `gorm:"type:text;not null;default:'ISSUED'"`
	IssueDate     time.Time    `gorm:"not null"`
	DueDate       time.Time    `gorm:"not null"`
	PaymentDate   *time.Time   `gorm:""`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (CustomerInvoice) TableName() string { return "customer_invoices" }

// CustomerInvoiceItem is one line of a customer invoice.
type CustomerInvoiceItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	InvoiceID   snowflake.ID `gorm:"not null;index"`
	Description string       `gorm:"type:text;not null"`
	Amount      int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CustomerInvoiceItem) TableName() string { return "customer_invoice_items" }
