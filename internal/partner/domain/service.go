package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
)

type CreateFeePlanRequest struct {
	Name           string
	MonthlyFee     int64
	PerOrderFee    int64
	PerProjectFee  int64
	ProjectFeeRate float64
	IsDefault      bool
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Partner, error)
	List(ctx context.Context) ([]Partner, error)

	// PlanFor resolves the fee plan applied to a partner: its assigned plan,
	// or the default plan when none is assigned.
	PlanFor(ctx context.Context, partner Partner) (fees.Plan, error)

	CreateFeePlan(ctx context.Context, req CreateFeePlanRequest) (FeePlan, error)
	ListFeePlans(ctx context.Context) ([]FeePlan, error)
	AssignFeePlan(ctx context.Context, partnerID, planID snowflake.ID) error
	SetActive(ctx context.Context, partnerID snowflake.ID, active bool) error
}

var (
	ErrNotFound        = errors.New("partner_not_found")
	ErrFeePlanNotFound = errors.New("fee_plan_not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrNoDefaultPlan   = errors.New("no_default_fee_plan")
)
