package service

import (
	"context"
	"errors"
	"time"

	"github.com/gaihekinavi/platform/internal/clock"
	dashboarddomain "github.com/gaihekinavi/platform/internal/dashboard/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	"github.com/gaihekinavi/platform/internal/fees"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	PartnerSvc partnerdomain.Service
	OrderSvc   orderdomain.Service
	DepositSvc depositdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	partnerSvc partnerdomain.Service
	orderSvc   orderdomain.Service
	depositSvc depositdomain.Service
}

func New(p Params) dashboarddomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("dashboard.service"),
		clock:      p.Clock,
		partnerSvc: p.PartnerSvc,
		orderSvc:   p.OrderSvc,
		depositSvc: p.DepositSvc,
	}
}

func (s *Service) Overview(ctx context.Context) (dashboarddomain.Overview, error) {
	var overview dashboarddomain.Overview

	handle := s.db.WithContext(ctx)
	if err := handle.Raw(`SELECT COALESCE(SUM(referral_fee), 0) FROM referrals`).
		Scan(&overview.TotalReferralFees).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}
	if err := handle.Raw(`SELECT COUNT(*) FROM diagnosis_requests`).
		Scan(&overview.DiagnosisCount).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}
	if err := handle.Raw(`SELECT COUNT(*) FROM referrals`).
		Scan(&overview.ReferralCount).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}
	if err := handle.Raw(`SELECT COUNT(*) FROM diagnosis_requests WHERE status = ?`, orderdomain.DiagnosisStatusDecided).
		Scan(&overview.DecidedCount).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}
	if err := handle.Raw(`SELECT COUNT(*) FROM partners WHERE active = ?`, true).
		Scan(&overview.ActivePartners).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}

	now := s.clock.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := handle.Raw(`SELECT COUNT(*) FROM partners WHERE created_at >= ?`, monthStart).
		Scan(&overview.NewPartnersMonth).Error; err != nil {
		return dashboarddomain.Overview{}, err
	}

	total, err := s.depositSvc.TotalBalance(ctx)
	if err != nil {
		return dashboarddomain.Overview{}, err
	}
	overview.TotalDepositBalance = total

	return overview, nil
}

// MonthlyTrend walks backwards from the current month. Points come out oldest
// first.
func (s *Service) MonthlyTrend(ctx context.Context, months int) ([]dashboarddomain.TrendPoint, error) {
	if months <= 0 || months > 36 {
		return nil, dashboarddomain.ErrInvalidRange
	}

	now := s.clock.Now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	points := make([]dashboarddomain.TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)

		point := dashboarddomain.TrendPoint{Year: start.Year(), Month: start.Month()}
		handle := s.db.WithContext(ctx)

		if err := handle.Raw(
			`SELECT COALESCE(SUM(referral_fee), 0), COUNT(*) FROM referrals WHERE created_at >= ? AND created_at < ?`,
			start, end,
		).Row().Scan(&point.ReferralFees, &point.ReferralCount); err != nil {
			return nil, err
		}
		if err := handle.Raw(
			`SELECT COUNT(*) FROM orders WHERE created_at >= ? AND created_at < ?`,
			start, end,
		).Scan(&point.OrderCount).Error; err != nil {
			return nil, err
		}
		if err := handle.Raw(
			`SELECT COUNT(*), COALESCE(SUM(revenue), 0) FROM orders
			 WHERE status = ? AND completed_at >= ? AND completed_at < ?`,
			orderdomain.OrderStatusCompleted, start, end,
		).Row().Scan(&point.CompletedCount, &point.Revenue); err != nil {
			return nil, err
		}

		points = append(points, point)
	}
	return points, nil
}

// PartnerSummaries previews one month of billing per active partner. Usage
// and fees are computed exactly the way invoice generation computes them,
// minus the already-billed exclusion so the preview shows the whole month.
func (s *Service) PartnerSummaries(ctx context.Context, year int, month time.Month) ([]dashboarddomain.PartnerSummary, error) {
	if year < 2000 || month < time.January || month > time.December {
		return nil, dashboarddomain.ErrInvalidRange
	}

	partners, err := s.partnerSvc.List(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	summaries := make([]dashboarddomain.PartnerSummary, 0, len(partners))
	for _, partner := range partners {
		if !partner.Active {
			continue
		}

		tally, err := s.orderSvc.TallyForWindow(ctx, orderdomain.TallyQuery{
			PartnerID: partner.ID,
			Start:     start,
			End:       end,
		})
		if err != nil {
			return nil, err
		}

		summary := dashboarddomain.PartnerSummary{
			PartnerID:      partner.ID,
			CompanyName:    partner.CompanyName,
			OrderCount:     tally.OrderCount,
			ProjectCount:   tally.ProjectCount,
			ProjectRevenue: tally.ProjectRevenue,
		}

		plan, err := s.partnerSvc.PlanFor(ctx, partner)
		if err == nil {
			summary.EstimatedFees = fees.Calculate(plan, tally).Total
		} else if !errors.Is(err, partnerdomain.ErrNoDefaultPlan) {
			return nil, err
		}

		balance, err := s.depositSvc.GetBalance(ctx, partner.ID)
		if err != nil && !errors.Is(err, depositdomain.ErrBalanceNotFound) {
			return nil, err
		}
		summary.DepositBalance = balance

		summaries = append(summaries, summary)
	}
	return summaries, nil
}
