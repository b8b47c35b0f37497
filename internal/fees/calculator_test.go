package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_ZeroUsageChargesMonthlyFeeOnly(t *testing.T) {
	plan := Plan{
		MonthlyFee:     5000,
		PerOrderFee:    1000,
		PerProjectFee:  3000,
		ProjectFeeRate: 0.05,
	}

	b := Calculate(plan, UsageTally{})

	assert.Equal(t, int64(5000), b.MonthlyFee)
	assert.Equal(t, int64(0), b.OrderFeeTotal)
	assert.Equal(t, int64(0), b.ProjectFeeTotal)
	assert.Equal(t, int64(0), b.RevenueFeeTotal)
	assert.Equal(t, plan.MonthlyFee, b.Total)
	assert.Len(t, b.Items, 1)
}

func TestCalculate_ZeroUsageZeroPlanIsEmpty(t *testing.T) {
	b := Calculate(Plan{}, UsageTally{})

	assert.Equal(t, int64(0), b.Total)
	assert.Empty(t, b.Items)
}

func TestCalculate_StandardScenario(t *testing.T) {
	plan := Plan{
		MonthlyFee:     5000,
		PerOrderFee:    1000,
		PerProjectFee:  3000,
		ProjectFeeRate: 0.05,
	}
	tally := UsageTally{
		OrderCount:     4,
		ProjectCount:   2,
		ProjectRevenue: 200000,
	}

	b := Calculate(plan, tally)

	assert.Equal(t, int64(5000), b.MonthlyFee)
	assert.Equal(t, int64(4000), b.OrderFeeTotal)
	assert.Equal(t, int64(6000), b.ProjectFeeTotal)
	assert.Equal(t, int64(10000), b.RevenueFeeTotal)
	assert.Equal(t, int64(25000), b.Total)
	assert.Len(t, b.Items, 4)
}

func TestCalculate_RateFeeNeedsCompletedProjects(t *testing.T) {
	plan := Plan{ProjectFeeRate: 0.05}
	tally := UsageTally{OrderCount: 3, ProjectRevenue: 100000}

	b := Calculate(plan, tally)

	assert.Equal(t, int64(0), b.RevenueFeeTotal)
	assert.Equal(t, int64(0), b.Total)
}

func TestRoundRate_HalfUp(t *testing.T) {
	// 10% of 1005 is 100.5 and rounds up.
	assert.Equal(t, int64(101), RoundRate(1005, 0.10))
	assert.Equal(t, int64(100), RoundRate(1004, 0.10))
	// 5% of 12345 is 617.25 and rounds down.
	assert.Equal(t, int64(617), RoundRate(12345, 0.05))
}

func TestTax_PinnedValues(t *testing.T) {
	assert.Equal(t, int64(2500), Tax(25000, 0.10))
	assert.Equal(t, int64(124), Tax(1235, 0.10))
	assert.Equal(t, int64(0), Tax(0, 0.10))
}
