// Package domain contains partner directory models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Partner is a contracting company on the marketplace.
type Partner struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	CompanyName string        `gorm:"type:text;not null"`
	Email       string        `gorm:"type:text;not null;uniqueIndex"`
	Prefecture  string        `gorm:"type:text;index"`
	Active      bool          `gorm:"not null;default:true"`
	FeePlanID   *snowflake.ID `gorm:"index"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Partner) TableName() string { return "partners" }

// FeePlan is a reusable commission schedule. A partner without an explicit
// plan falls back to the default plan.
type FeePlan struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Name           string       `gorm:"type:text;not null"`
	MonthlyFee     int64        `gorm:"not null;default:0"`
	PerOrderFee    int64        `gorm:"not null;default:0"`
	PerProjectFee  int64        `gorm:"not null;default:0"`
	ProjectFeeRate float64      `gorm:"not null;default:0"`
	IsDefault      bool         `gorm:"not null;default:false"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FeePlan) TableName() string { return "fee_plans" }
