package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	"github.com/gaihekinavi/platform/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) Issue(ctx context.Context, invoiceID snowflake.ID, issuedBy string) (invoicedomain.Invoice, error) {
	var issued invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != invoicedomain.StatusDraft {
			return invoicedomain.ErrNotDraft
		}

		// An invoice re-issued after an override back to DRAFT keeps its
		// original issue and due dates.
		now := s.clock.Now().UTC()
		issueDate := invoice.IssueDate
		if issueDate == nil {
			issueDate = &now
		}
		dueDate := invoice.DueDate
		if dueDate == nil {
			due := s.dueDateFor(*issueDate)
			dueDate = &due
		}
		if err := tx.WithContext(ctx).Exec(
			`UPDATE company_invoices
			 SET status = ?, issue_date = ?, due_date = ?, updated_at = ?
			 WHERE id = ?`,
			invoicedomain.StatusUnpaid, issueDate, dueDate, now, invoiceID,
		).Error; err != nil {
			return err
		}

		invoice.Status = invoicedomain.StatusUnpaid
		invoice.IssueDate = issueDate
		invoice.DueDate = dueDate
		invoice.UpdatedAt = now
		issued = invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if s.metrics != nil {
		s.metrics.InvoicesIssued.Inc()
	}
	actorID := strings.TrimSpace(issuedBy)
	targetID := invoiceID.String()
	s.audit(ctx, &actorID, "invoice.issued", &targetID, map[string]any{
		"invoice_number": issued.InvoiceNumber,
		"grand_total":    issued.GrandTotal,
	})
	return issued, nil
}

// IssueMany issues each invoice independently. A non-draft or missing invoice
// fails its own entry; the rest of the batch proceeds.
func (s *Service) IssueMany(ctx context.Context, invoiceIDs []snowflake.ID, issuedBy string) []invoicedomain.IssueResult {
	results := make([]invoicedomain.IssueResult, 0, len(invoiceIDs))
	for _, id := range invoiceIDs {
		_, err := s.Issue(ctx, id, issuedBy)
		results = append(results, invoicedomain.IssueResult{InvoiceID: id, Err: err})
	}
	return results
}

func (s *Service) MarkPaid(ctx context.Context, invoiceID snowflake.ID, markedBy string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, invoiceID, invoicedomain.StatusPaid, markedBy, "invoice.paid")
}

func (s *Service) MarkOverdue(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	return s.transition(ctx, invoiceID, invoicedomain.StatusOverdue, "system", "invoice.overdue")
}

func (s *Service) Cancel(ctx context.Context, invoiceID snowflake.ID, cancelledBy string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, invoiceID, invoicedomain.StatusCancelled, cancelledBy, "invoice.cancelled")
}

// transition applies the normal lifecycle rules:
//
//	UNPAID  -> PAID, OVERDUE, CANCELLED
//	OVERDUE -> PAID, CANCELLED
//	DRAFT   -> CANCELLED (issuing is the only other way out of DRAFT)
//
// PAID and CANCELLED accept nothing.
func (s *Service) transition(ctx context.Context, invoiceID snowflake.ID, to invoicedomain.Status, actor, action string) (invoicedomain.Invoice, error) {
	var updated invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if !allowedTransition(invoice.Status, to) {
			return invoicedomain.ErrInvalidStateTransition
		}

		now := s.clock.Now().UTC()
		updated = invoice
		updated.Status = to
		updated.UpdatedAt = now
		if to == invoicedomain.StatusPaid {
			updated.PaymentDate = &now
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE company_invoices
			 SET status = ?, payment_date = ?, updated_at = ?
			 WHERE id = ?`,
			to, updated.PaymentDate, now, invoiceID,
		).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if s.metrics != nil {
		s.metrics.InvoiceTransitions.WithLabelValues(string(to)).Inc()
	}
	actorID := strings.TrimSpace(actor)
	targetID := invoiceID.String()
	s.audit(ctx, &actorID, action, &targetID, map[string]any{
		"invoice_number": updated.InvoiceNumber,
		"to":             string(to),
	})
	return updated, nil
}

func allowedTransition(from, to invoicedomain.Status) bool {
	switch from {
	case invoicedomain.StatusDraft:
		return to == invoicedomain.StatusCancelled
	case invoicedomain.StatusUnpaid:
		return to == invoicedomain.StatusPaid || to == invoicedomain.StatusOverdue || to == invoicedomain.StatusCancelled
	case invoicedomain.StatusOverdue:
		return to == invoicedomain.StatusPaid || to == invoicedomain.StatusCancelled
	default:
		return false
	}
}

// Override bypasses the transition matrix for admin corrections. The terminal
// states stay terminal: a PAID or CANCELLED invoice cannot be moved off them
// even by override.
func (s *Service) Override(ctx context.Context, invoiceID snowflake.ID, to invoicedomain.Status, overriddenBy string) (invoicedomain.Invoice, error) {
	if !to.Known() {
		return invoicedomain.Invoice{}, invoicedomain.ErrUnknownStatus
	}

	var updated invoicedomain.Invoice
	var from invoicedomain.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		from = invoice.Status
		if invoice.Status == to {
			updated = invoice
			return nil
		}
		if invoice.Status == invoicedomain.StatusPaid || invoice.Status == invoicedomain.StatusCancelled {
			return invoicedomain.ErrTerminalStatus
		}

		now := s.clock.Now().UTC()
		updated = invoice
		updated.Status = to
		updated.UpdatedAt = now
		if to == invoicedomain.StatusPaid && updated.PaymentDate == nil {
			updated.PaymentDate = &now
		}
		if (to == invoicedomain.StatusUnpaid || to == invoicedomain.StatusOverdue) && updated.IssueDate == nil {
			due := s.dueDateFor(now)
			updated.IssueDate = &now
			updated.DueDate = &due
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE company_invoices
			 SET status = ?, issue_date = ?, due_date = ?, payment_date = ?, updated_at = ?
			 WHERE id = ?`,
			to, updated.IssueDate, updated.DueDate, updated.PaymentDate, now, invoiceID,
		).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	if from != to {
		if s.metrics != nil {
			s.metrics.InvoiceTransitions.WithLabelValues(string(to)).Inc()
		}
		actorID := strings.TrimSpace(overriddenBy)
		targetID := invoiceID.String()
		s.audit(ctx, &actorID, "invoice.status_overridden", &targetID, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	}
	return updated, nil
}

func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	now := s.clock.Now().UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE company_invoices
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_date IS NOT NULL AND due_date < ?`,
		invoicedomain.StatusOverdue, now, invoicedomain.StatusUnpaid, now,
	)
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		if s.metrics != nil {
			s.metrics.InvoiceTransitions.WithLabelValues(string(invoicedomain.StatusOverdue)).Add(float64(result.RowsAffected))
		}
		s.log.Info("swept unpaid invoices past due", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// dueDateFor returns the configured payment day of the month after issue,
// clamped to that month's last day.
func (s *Service) dueDateFor(issue time.Time) time.Time {
	firstOfNext := time.Date(issue.Year(), issue.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	day := s.cfg.Billing.PaymentDay
	if last := firstOfNext.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_number, partner_id, period_start, period_end,
		        subtotal, tax_amount, grand_total, status,
		        issue_date, due_date, payment_date, created_at, updated_at
		 FROM company_invoices
		 WHERE id = ?`+db.ForUpdate(tx),
		id,
	).Scan(&invoice).Error
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice.ID == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}
