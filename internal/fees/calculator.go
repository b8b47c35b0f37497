// Package fees computes commission breakdowns from a partner's fee plan and a
// usage tally. It is pure: the same plan and tally always produce the same
// breakdown, and both invoice generation and dashboard reporting go through
// Calculate so the two can never disagree.
package fees

import (
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
)

// Plan is the commission schedule attached to a partner. Amounts are whole
// yen; ProjectFeeRate is a fraction of completed-project revenue (0.05 = 5%).
type Plan struct {
	MonthlyFee     int64
	PerOrderFee    int64
	PerProjectFee  int64
	ProjectFeeRate float64
}

// UsageTally is a partner's activity inside one billing window. It is
// recomputed from order data each time and never persisted.
type UsageTally struct {
	OrderCount     int64
	ProjectCount   int64
	ProjectRevenue int64

	// OrderIDs and ProjectIDs identify the source orders behind the counts,
	// carried through so generated invoices can link back to them.
	OrderIDs   []snowflake.ID
	ProjectIDs []snowflake.ID
}

// Zero reports whether the tally carries no billable activity.
func (t UsageTally) Zero() bool {
	return t.OrderCount == 0 && t.ProjectCount == 0 && t.ProjectRevenue == 0
}

// LineItem is one row of a commission breakdown.
type LineItem struct {
	Description string
	Amount      int64
}

// Breakdown is the result of applying a Plan to a UsageTally.
type Breakdown struct {
	MonthlyFee      int64
	OrderFeeTotal   int64
	ProjectFeeTotal int64
	RevenueFeeTotal int64
	Total           int64

	Items []LineItem
}

// Calculate applies plan to tally. The monthly fee is charged once per window
// whenever the plan defines one, even with zero usage; variable components are
// charged only when both the plan rate and the usage are non-zero.
func Calculate(plan Plan, tally UsageTally) Breakdown {
	var b Breakdown

	if plan.MonthlyFee > 0 {
		b.MonthlyFee = plan.MonthlyFee
		b.Items = append(b.Items, LineItem{
			Description: "月額利用料",
			Amount:      plan.MonthlyFee,
		})
	}

	if plan.PerOrderFee > 0 && tally.OrderCount > 0 {
		b.OrderFeeTotal = plan.PerOrderFee * tally.OrderCount
		b.Items = append(b.Items, LineItem{
			Description: fmt.Sprintf("受注手数料 (%d件)", tally.OrderCount),
			Amount:      b.OrderFeeTotal,
		})
	}

	if plan.PerProjectFee > 0 && tally.ProjectCount > 0 {
		b.ProjectFeeTotal = plan.PerProjectFee * tally.ProjectCount
		b.Items = append(b.Items, LineItem{
			Description: fmt.Sprintf("施工完了手数料 (%d件)", tally.ProjectCount),
			Amount:      b.ProjectFeeTotal,
		})
	}

	if plan.ProjectFeeRate > 0 && tally.ProjectCount > 0 {
		b.RevenueFeeTotal = RoundRate(tally.ProjectRevenue, plan.ProjectFeeRate)
		b.Items = append(b.Items, LineItem{
			Description: fmt.Sprintf("施工完了手数料 (%d件, %.1f%%)", tally.ProjectCount, plan.ProjectFeeRate*100),
			Amount:      b.RevenueFeeTotal,
		})
	}

	b.Total = b.MonthlyFee + b.OrderFeeTotal + b.ProjectFeeTotal + b.RevenueFeeTotal
	return b
}

// RoundRate multiplies a whole-yen amount by a fractional rate and rounds
// half-up. All currency math in this codebase rounds half-up; there are no
// fractional yen.
func RoundRate(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}

// Tax returns the consumption tax on a subtotal, rounded half-up.
func Tax(subtotal int64, taxRate float64) int64 {
	return RoundRate(subtotal, taxRate)
}
