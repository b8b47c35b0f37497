// Package domain contains the prepaid deposit ledger models. Every referral
// fee is debited from a partner's deposit balance; the balance must never go
// negative.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Balance is a partner's current prepaid amount. Version increments on every
// mutation so reconciliation can detect lost updates.
type Balance struct {
	PartnerID snowflake.ID `gorm:"primaryKey"`
	Amount    int64        `gorm:"not null;default:0"`
	Version   int64        `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "deposit_balances" }

type EntryKind string

const (
	EntryKindDeposit   EntryKind = "DEPOSIT"
	EntryKindDeduction EntryKind = "DEDUCTION"
)

// Entry is one movement on a partner's deposit balance. Seq is monotonically
// increasing per partner, so the full history replays to the current balance.
type Entry struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	PartnerID    snowflake.ID  `gorm:"not null;uniqueIndex:ux_deposit_entries_partner_seq,priority:1"`
	Seq          int64         `gorm:"not null;uniqueIndex:ux_deposit_entries_partner_seq,priority:2"`
	Amount       int64         `gorm:"not null"` // signed: credits positive, debits negative
	Kind         EntryKind     `gorm:"type:text;not null"`
	BalanceAfter int64         `gorm:"not null"`
	Description  string        `gorm:"type:text"`
	DiagnosisID  *snowflake.ID `gorm:"index"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "deposit_entries" }

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// Request is a partner's top-up request awaiting admin review. The approved
// amount may differ from the requested one (partial approval).
type Request struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	PartnerID       snowflake.ID  `gorm:"not null;index"`
	RequestedAmount int64         `gorm:"not null"`
	ApprovedAmount  *int64        `gorm:""`
	Status          RequestStatus `gorm:"type:text;not null;default:'PENDING';index"`
	PartnerNote     string        `gorm:"type:text"`
	AdminNote       string        `gorm:"type:text"`
	ApprovedBy      *string       `gorm:"type:text"`
	ApprovedAt      *time.Time    `gorm:""`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Request) TableName() string { return "deposit_requests" }
