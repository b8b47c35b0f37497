// Package domain defines the admin dashboard read models. Everything here is
// derived: the aggregator recomputes from ledger and order data on each call
// and persists nothing.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Overview is the front-page KPI block.
type Overview struct {
	TotalReferralFees   int64 `json:"total_referral_fees"`
	TotalDepositBalance int64 `json:"total_deposit_balance"`
	DiagnosisCount      int64 `json:"diagnosis_count"`
	ReferralCount       int64 `json:"referral_count"`
	DecidedCount        int64 `json:"decided_count"`
	ActivePartners      int64 `json:"active_partners"`
	NewPartnersMonth    int64 `json:"new_partners_month"`
}

// TrendPoint is one month of platform activity.
type TrendPoint struct {
	Year           int        `json:"year"`
	Month          time.Month `json:"month"`
	ReferralFees   int64      `json:"referral_fees"`
	ReferralCount  int64      `json:"referral_count"`
	OrderCount     int64      `json:"order_count"`
	CompletedCount int64      `json:"completed_count"`
	Revenue        int64      `json:"revenue"`
}

// PartnerSummary is one partner's row in the monthly billing preview. The
// estimated fees come from the same calculation invoice generation uses, so
// the preview always matches what will be billed.
type PartnerSummary struct {
	PartnerID      snowflake.ID `json:"partner_id"`
	CompanyName    string       `json:"company_name"`
	OrderCount     int64        `json:"order_count"`
	ProjectCount   int64        `json:"project_count"`
	ProjectRevenue int64        `json:"project_revenue"`
	EstimatedFees  int64        `json:"estimated_fees"`
	DepositBalance int64        `json:"deposit_balance"`
}

type Service interface {
	Overview(ctx context.Context) (Overview, error)
	MonthlyTrend(ctx context.Context, months int) ([]TrendPoint, error)
	PartnerSummaries(ctx context.Context, year int, month time.Month) ([]PartnerSummary, error)
}

var ErrInvalidRange = errors.New("invalid_range")
