package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	custdomain "github.com/gaihekinavi/platform/internal/customerinvoice/domain"
	"github.com/gaihekinavi/platform/internal/fees"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	"github.com/gaihekinavi/platform/pkg/db"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
	"github.com/gaihekinavi/platform/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	OrderSvc orderdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	orderSvc    orderdomain.Service
	invoiceRepo repository.Repository[custdomain.CustomerInvoice]
	itemRepo    repository.Repository[custdomain.CustomerInvoiceItem]
}

func New(p Params) custdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("customerinvoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		orderSvc:    p.OrderSvc,
		invoiceRepo: repository.ProvideStore[custdomain.CustomerInvoice](p.DB),
		itemRepo:    repository.ProvideStore[custdomain.CustomerInvoiceItem](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, in custdomain.CreateInput) (custdomain.CustomerInvoice, error) {
	if len(in.Items) == 0 {
		return custdomain.CustomerInvoice{}, custdomain.ErrNoItems
	}
	var subtotal int64
	for _, item := range in.Items {
		if strings.TrimSpace(item.Description) == "" || item.Amount <= 0 {
			return custdomain.CustomerInvoice{}, custdomain.ErrInvalidItem
		}
		subtotal += item.Amount
	}

	order, err := s.orderSvc.GetOrder(ctx, in.OrderID)
	if err != nil {
		return custdomain.CustomerInvoice{}, err
	}
	if order.PartnerID != in.PartnerID {
		return custdomain.CustomerInvoice{}, custdomain.ErrNotOrderOwner
	}

	now := s.clock.Now().UTC()
	taxAmount := fees.Tax(subtotal, s.cfg.Billing.TaxRate)
	invoice := custdomain.CustomerInvoice{
		ID:           s.genID.Generate(),
		OrderID:      in.OrderID,
		PartnerID:    in.PartnerID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Subtotal:     subtotal,
		TaxAmount:    taxAmount,
		GrandTotal:   subtotal + taxAmount,
		Status:       custdomain.StatusIssued,
		IssueDate:    now,
		DueDate:      s.dueDateFor(now),
		CreatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.nextInvoiceNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return custdomain.ErrAlreadyInvoiced
			}
			return err
		}

		for _, item := range in.Items {
			row := custdomain.CustomerInvoiceItem{
				ID:          s.genID.Generate(),
				InvoiceID:   invoice.ID,
				Description: strings.TrimSpace(item.Description),
				Amount:      item.Amount,
				CreatedAt:   now,
			}
			if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return custdomain.CustomerInvoice{}, err
	}
	return invoice, nil
}

// nextInvoiceNumber allocates the next INV-YYYY-NNNN for the year. The suffix
// max is computed numerically so the sequence keeps counting past 9999.
func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%04d-", year)

	var maxSuffix int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(CAST(SUBSTR(invoice_number, ?) AS INTEGER)), 0)
		 FROM customer_invoices WHERE invoice_number LIKE ?`,
		len(prefix)+1, prefix+"%",
	).Scan(&maxSuffix).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, maxSuffix+1), nil
}

// dueDateFor follows the same payment-day rule as company invoices: the
// configured day of the month after issue, clamped to short months.
func (s *Service) dueDateFor(issue time.Time) time.Time {
	day := s.cfg.Billing.PaymentDay
	if day <= 0 {
		day = 20
	}
	firstOfNext := time.Date(issue.Year(), issue.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}

func (s *Service) MarkPaid(ctx context.Context, invoiceID snowflake.ID) (custdomain.CustomerInvoice, error) {
	var invoice custdomain.CustomerInvoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []custdomain.CustomerInvoice
		err := tx.WithContext(ctx).Raw(
			`SELECT * FROM customer_invoices WHERE id = ?`+db.ForUpdate(tx), invoiceID,
		).Scan(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return custdomain.ErrNotFound
		}
		invoice = rows[0]
		if invoice.Status == custdomain.StatusPaid {
			return custdomain.ErrAlreadyPaid
		}

		now := s.clock.Now().UTC()
		invoice.Status = custdomain.StatusPaid
		invoice.PaymentDate = &now
		return tx.WithContext(ctx).Exec(
			`UPDATE customer_invoices SET status = ?, payment_date = ? WHERE id = ?`,
			custdomain.StatusPaid, now, invoiceID,
		).Error
	})
	if err != nil {
		return custdomain.CustomerInvoice{}, err
	}
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, invoiceID snowflake.ID) (custdomain.CustomerInvoice, error) {
	invoice, err := s.invoiceRepo.FindOne(ctx, &custdomain.CustomerInvoice{ID: invoiceID})
	if err != nil {
		return custdomain.CustomerInvoice{}, err
	}
	if invoice == nil {
		return custdomain.CustomerInvoice{}, custdomain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) Items(ctx context.Context, invoiceID snowflake.ID) ([]custdomain.CustomerInvoiceItem, error) {
	rows, err := s.itemRepo.Find(ctx, &custdomain.CustomerInvoiceItem{InvoiceID: invoiceID},
		repository.WithOrder("created_at ASC, id ASC"),
	)
	if err != nil {
		return nil, err
	}
	items := make([]custdomain.CustomerInvoiceItem, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			items = append(items, *row)
		}
	}
	return items, nil
}

func (s *Service) List(ctx context.Context, req custdomain.ListInvoicesRequest) (custdomain.ListInvoicesResponse, error) {
	filter := &custdomain.CustomerInvoice{PartnerID: req.PartnerID}

	total, err := s.invoiceRepo.Count(ctx, filter)
	if err != nil {
		return custdomain.ListInvoicesResponse{}, err
	}
	rows, err := s.invoiceRepo.Find(ctx, filter,
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	)
	if err != nil {
		return custdomain.ListInvoicesResponse{}, err
	}

	invoices := make([]custdomain.CustomerInvoice, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			invoices = append(invoices, *row)
		}
	}
	return custdomain.ListInvoicesResponse{
		PageInfo: pagination.BuildPageInfo(req.Pagination, total),
		Invoices: invoices,
	}, nil
}
