package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	"github.com/gaihekinavi/platform/internal/fees"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	obsmetrics "github.com/gaihekinavi/platform/internal/observability/metrics"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	orderrepository "github.com/gaihekinavi/platform/internal/order/repository"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	"github.com/gaihekinavi/platform/pkg/db"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
	"github.com/gaihekinavi/platform/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	PartnerSvc partnerdomain.Service
	AuditSvc   auditdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	partnerSvc  partnerdomain.Service
	auditSvc    auditdomain.Service
	metrics     *obsmetrics.Metrics
	invoiceRepo repository.Repository[invoicedomain.Invoice]
	itemRepo    repository.Repository[invoicedomain.InvoiceItem]
}

func New(p Params) invoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		partnerSvc:  p.PartnerSvc,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		invoiceRepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
		itemRepo:    repository.ProvideStore[invoicedomain.InvoiceItem](p.DB),
	}
}

func (s *Service) GenerateMonthly(ctx context.Context, in invoicedomain.GenerateInput) ([]invoicedomain.GenerateResult, error) {
	if in.Year < 2000 || in.Month < time.January || in.Month > time.December {
		return nil, invoicedomain.ErrInvalidPeriod
	}

	start := time.Date(in.Year, in.Month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	prefix := fmt.Sprintf("COMP-%04d%02d-", in.Year, int(in.Month))

	return s.generate(ctx, in, "monthly", func(partner partnerdomain.Partner) (time.Time, time.Time) {
		return start, end
	}, prefix)
}

func (s *Service) GenerateUnbilled(ctx context.Context, in invoicedomain.GenerateInput) ([]invoicedomain.GenerateResult, error) {
	now := s.clock.Now().UTC()
	prefix := fmt.Sprintf("COMP-%04d%02d-", now.Year(), int(now.Month()))

	return s.generate(ctx, in, "unbilled", func(partner partnerdomain.Partner) (time.Time, time.Time) {
		return partner.CreatedAt.UTC(), now
	}, prefix)
}

// generate runs one billing pass over the target partners. Each partner is
// processed in its own transaction; a failure is recorded in that partner's
// result and the batch continues.
func (s *Service) generate(ctx context.Context, in invoicedomain.GenerateInput, mode string, window func(partnerdomain.Partner) (time.Time, time.Time), numberPrefix string) ([]invoicedomain.GenerateResult, error) {
	partners, err := s.targetPartners(ctx, in.PartnerIDs)
	if err != nil {
		return nil, err
	}

	results := make([]invoicedomain.GenerateResult, 0, len(partners))
	generated := 0
	for _, partner := range partners {
		result := invoicedomain.GenerateResult{PartnerID: partner.ID}

		start, end := window(partner)
		invoice, skipped, err := s.generateForPartner(ctx, partner, mode, start, end, numberPrefix)
		if err != nil {
			result.Err = err
			s.log.Error("invoice generation failed for partner",
				zap.String("partner_id", partner.ID.String()),
				zap.String("mode", mode),
				zap.Error(err),
			)
		} else if skipped {
			result.Skipped = true
		} else {
			result.Invoice = invoice
			generated++
			if s.metrics != nil {
				s.metrics.InvoicesGenerated.WithLabelValues(mode).Inc()
			}
		}
		results = append(results, result)
	}

	actorID := strings.TrimSpace(in.GeneratedBy)
	s.audit(ctx, &actorID, "invoice.batch_generated", nil, map[string]any{
		"mode":      mode,
		"partners":  len(partners),
		"generated": generated,
	})
	return results, nil
}

// generateForPartner builds one DRAFT invoice inside a transaction. The
// partner row is locked first so two concurrent runs for the same partner
// serialize; the billed-order exclusion then guarantees the loser of the race
// sees nothing left to bill.
func (s *Service) generateForPartner(ctx context.Context, partner partnerdomain.Partner, mode string, start, end time.Time, numberPrefix string) (*invoicedomain.Invoice, bool, error) {
	if !end.After(start) {
		return nil, true, nil
	}

	plan, err := s.partnerSvc.PlanFor(ctx, partner)
	if err != nil {
		return nil, false, err
	}
	// The monthly fee is charged by monthly runs only; a catch-up sweep
	// bills missed usage, never a second base fee.
	if mode == "unbilled" {
		plan.MonthlyFee = 0
	}

	var invoice invoicedomain.Invoice
	skipped := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockPartner(ctx, tx, partner.ID); err != nil {
			return err
		}

		// One invoice per partner per period. A cancelled invoice releases
		// the period (and its orders) for re-generation.
		if mode == "monthly" {
			var existing int64
			if err := tx.WithContext(ctx).Raw(
				`SELECT COUNT(*) FROM company_invoices
				 WHERE partner_id = ? AND period_start = ? AND period_end = ? AND status <> ?`,
				partner.ID, start, end, invoicedomain.StatusCancelled,
			).Scan(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				skipped = true
				return nil
			}
		}

		tally, err := orderrepository.Tally(ctx, tx, orderdomain.TallyQuery{
			PartnerID:     partner.ID,
			Start:         start,
			End:           end,
			ExcludeBilled: true,
		})
		if err != nil {
			return err
		}

		breakdown := fees.Calculate(plan, tally)
		if breakdown.Total == 0 {
			skipped = true
			return nil
		}

		number, err := s.nextInvoiceNumber(ctx, tx, numberPrefix)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		subtotal := breakdown.Total
		taxAmount := fees.Tax(subtotal, s.cfg.Billing.TaxRate)
		invoice = invoicedomain.Invoice{
			ID:            s.genID.Generate(),
			InvoiceNumber: number,
			PartnerID:     partner.ID,
			PeriodStart:   start,
			PeriodEnd:     end,
			Subtotal:      subtotal,
			TaxAmount:     taxAmount,
			GrandTotal:    subtotal + taxAmount,
			Status:        invoicedomain.StatusDraft,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
			return err
		}

		for _, item := range breakdown.Items {
			row := invoicedomain.InvoiceItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoice.ID,
				Description: item.Description,
				Amount:      item.Amount,
				CreatedAt:   now,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
		}

		if err := s.linkOrders(ctx, tx, invoice.ID, tally.OrderIDs, invoicedomain.LinkKindOrder, now); err != nil {
			return err
		}
		return s.linkOrders(ctx, tx, invoice.ID, tally.ProjectIDs, invoicedomain.LinkKindProject, now)
	})
	if err != nil {
		return nil, false, err
	}
	if skipped {
		return nil, true, nil
	}
	return &invoice, false, nil
}

func (s *Service) targetPartners(ctx context.Context, ids []snowflake.ID) ([]partnerdomain.Partner, error) {
	if len(ids) == 0 {
		all, err := s.partnerSvc.List(ctx)
		if err != nil {
			return nil, err
		}
		active := make([]partnerdomain.Partner, 0, len(all))
		for _, partner := range all {
			if partner.Active {
				active = append(active, partner)
			}
		}
		return active, nil
	}

	partners := make([]partnerdomain.Partner, 0, len(ids))
	for _, id := range ids {
		partner, err := s.partnerSvc.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		partners = append(partners, partner)
	}
	return partners, nil
}

func (s *Service) lockPartner(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) error {
	var id snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT id FROM partners WHERE id = ?`+db.ForUpdate(tx),
		partnerID,
	).Scan(&id).Error
	if err != nil {
		return err
	}
	if id == 0 {
		return partnerdomain.ErrNotFound
	}
	return nil
}

// nextInvoiceNumber allocates the next COMP-YYYYMM-NNNN for the prefix. The
// suffix max is computed numerically, so sequences past 9999 keep counting
// instead of wrapping back into taken numbers. The caller holds the partner
// lock but numbers are global per period, so a unique index on invoice_number
// backstops cross-partner races.
func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	var maxSuffix int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(CAST(SUBSTR(invoice_number, ?) AS INTEGER)), 0)
		 FROM company_invoices WHERE invoice_number LIKE ?`,
		len(prefix)+1, prefix+"%",
	).Scan(&maxSuffix).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, maxSuffix+1), nil
}

func (s *Service) linkOrders(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, orderIDs []snowflake.ID, kind invoicedomain.LinkKind, now time.Time) error {
	for _, orderID := range orderIDs {
		link := invoicedomain.InvoiceOrderLink{
			ID:        s.genID.Generate(),
			InvoiceID: invoiceID,
			OrderID:   orderID,
			Kind:      kind,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, invoiceID snowflake.ID) (invoicedomain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) Items(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	rows, err := s.itemRepo.Find(ctx, &invoicedomain.InvoiceItem{InvoiceID: invoiceID},
		repository.WithOrder("created_at ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	items := make([]invoicedomain.InvoiceItem, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			items = append(items, *row)
		}
	}
	return items, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	filter := &invoicedomain.Invoice{PartnerID: req.PartnerID, Status: req.Status}

	total, err := s.invoiceRepo.Count(ctx, filter)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}
	rows, err := s.invoiceRepo.Find(ctx, filter,
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	)
	if err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	invoices := make([]invoicedomain.Invoice, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			invoices = append(invoices, *row)
		}
	}
	return invoicedomain.ListInvoicesResponse{
		PageInfo: pagination.BuildPageInfo(req.Pagination, total),
		Invoices: invoices,
	}, nil
}

func (s *Service) audit(ctx context.Context, actorID *string, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, actorID, action, "invoice", targetID, metadata); err != nil {
		s.log.Warn("failed to write invoice audit log", zap.Error(err))
	}
}
