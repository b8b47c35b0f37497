// Package domain contains the referral models. A referral ties one partner to
// one diagnosis request and records the fee debited from the partner's
// deposit at assignment time.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Referral is one partner's assignment to a diagnosis request. The
// (diagnosis_id, partner_id) pair is unique: a partner is never charged twice
// for the same lead.
type Referral struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DiagnosisID snowflake.ID `gorm:"not null;uniqueIndex:ux_referrals_diagnosis_partner,priority:1"`
	PartnerID   snowflake.ID `gorm:"not null;uniqueIndex:ux_referrals_diagnosis_partner,priority:2;index"`
	ReferralFee int64        `gorm:"not null"`
	EmailSent   bool         `gorm:"not null;default:false"`
	EmailSentAt *time.Time   `gorm:""`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Referral) TableName() string { return "referrals" }
