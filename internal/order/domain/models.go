// Package domain contains order and diagnosis-request models. These records
// are produced by the customer-facing flows; the billing core only reads them.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiagnosisStatus tracks a customer diagnosis request through matching.
type DiagnosisStatus string

const (
	DiagnosisStatusPending  DiagnosisStatus = "PENDING"
	DiagnosisStatusReferred DiagnosisStatus = "REFERRED"
	DiagnosisStatusDecided  DiagnosisStatus = "DECIDED"
	DiagnosisStatusClosed   DiagnosisStatus = "CLOSED"
)

// DiagnosisRequest is a customer's request for an exterior-painting diagnosis.
type DiagnosisRequest struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	DiagnosisNumber string          `gorm:"type:text;not null;uniqueIndex"`
	CustomerName    string          `gorm:"type:text;not null"`
	Prefecture      string          `gorm:"type:text;index"`
	Status          DiagnosisStatus `gorm:"type:text;not null;default:'PENDING'"`
	// ReferralFee overrides the platform default for this lead when set.
	ReferralFee *int64    `gorm:""`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DiagnosisRequest) TableName() string { return "diagnosis_requests" }

// OrderStatus tracks construction progress on a won project.
type OrderStatus string

const (
	OrderStatusOrdered    OrderStatus = "ORDERED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
)

// Order is a won project: a partner contracted by a referred customer.
// Revenue is the contract amount in whole yen, set on completion.
type Order struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DiagnosisID snowflake.ID `gorm:"not null;index"`
	PartnerID   snowflake.ID `gorm:"not null;index"`
	Status      OrderStatus  `gorm:"type:text;not null;default:'ORDERED'"`
	Revenue     int64        `gorm:"not null;default:0"`
	CompletedAt *time.Time   `gorm:"index"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }
