package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	"gorm.io/gorm"
)

// Tally computes a partner's usage for a window against the given handle,
// which may be a transaction. Order counts go by order date, project counts
// and revenue by completion date, so an order placed in one window and
// completed in the next is billed once for each fee kind.
func Tally(ctx context.Context, db *gorm.DB, q orderdomain.TallyQuery) (fees.UsageTally, error) {
	if !q.End.After(q.Start) {
		return fees.UsageTally{}, orderdomain.ErrInvalidWindow
	}

	var tally fees.UsageTally

	orderIDs, err := scanIDs(ctx, db, `
		SELECT o.id
		FROM orders o
		WHERE o.partner_id = ?
		  AND o.created_at >= ? AND o.created_at < ?`+billedExclusion(q.ExcludeBilled, "order"),
		q.PartnerID, q.Start, q.End,
	)
	if err != nil {
		return fees.UsageTally{}, err
	}
	tally.OrderIDs = orderIDs
	tally.OrderCount = int64(len(orderIDs))

	type projectRow struct {
		ID      snowflake.ID
		Revenue int64
	}
	var projects []projectRow
	err = db.WithContext(ctx).Raw(`
		SELECT o.id, o.revenue
		FROM orders o
		WHERE o.partner_id = ?
		  AND o.status = ?
		  AND o.completed_at >= ? AND o.completed_at < ?`+billedExclusion(q.ExcludeBilled, "project"),
		q.PartnerID, orderdomain.OrderStatusCompleted, q.Start, q.End,
	).Scan(&projects).Error
	if err != nil {
		return fees.UsageTally{}, err
	}
	for _, p := range projects {
		tally.ProjectIDs = append(tally.ProjectIDs, p.ID)
		tally.ProjectRevenue += p.Revenue
	}
	tally.ProjectCount = int64(len(projects))

	return tally, nil
}

// billedExclusion appends the already-billed marker join. Cancelled invoices
// release their orders for re-billing.
func billedExclusion(enabled bool, kind string) string {
	if !enabled {
		return ``
	}
	switch kind {
	case "order":
		return `
		  AND o.id NOT IN (
			SELECT l.order_id FROM invoice_order_links l
			JOIN company_invoices ci ON ci.id = l.invoice_id
			WHERE l.kind = 'order' AND ci.status <> 'CANCELLED')`
	default:
		return `
		  AND o.id NOT IN (
			SELECT l.order_id FROM invoice_order_links l
			JOIN company_invoices ci ON ci.id = l.invoice_id
			WHERE l.kind = 'project' AND ci.status <> 'CANCELLED')`
	}
}

func scanIDs(ctx context.Context, db *gorm.DB, query string, args ...any) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(query, args...).Scan(&ids).Error
	return ids, err
}
