package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	obsmetrics "github.com/gaihekinavi/platform/internal/observability/metrics"
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
	AuditSvc auditdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	auditSvc    auditdomain.Service
	metrics     *obsmetrics.Metrics
	requestRepo repository.Repository[depositdomain.Request]
	entryRepo   repository.Repository[depositdomain.Entry]
}

func New(p Params) depositdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("deposit.service"),
		genID:       p.GenID,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		requestRepo: repository.ProvideStore[depositdomain.Request](p.DB),
		entryRepo:   repository.ProvideStore[depositdomain.Entry](p.DB),
	}
}

func (s *Service) EnsureBalance(ctx context.Context, partnerID snowflake.ID) error {
	err := s.db.WithContext(ctx).Create(&depositdomain.Balance{
		PartnerID: partnerID,
		Amount:    0,
		UpdatedAt: time.Now().UTC(),
	}).Error
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func (s *Service) GetBalance(ctx context.Context, partnerID snowflake.ID) (int64, error) {
	return s.balanceOf(ctx, s.db, partnerID)
}

func (s *Service) TotalBalance(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM deposit_balances`,
	).Scan(&total).Error
	return total, err
}

func (s *Service) Credit(ctx context.Context, in depositdomain.CreditInput) (int64, error) {
	if in.Amount <= 0 {
		return 0, depositdomain.ErrInvalidAmount
	}

	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.creditTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return 0, err
	}

	actorID := strings.TrimSpace(in.ApprovedBy)
	targetID := in.PartnerID.String()
	s.audit(ctx, auditdomain.ActorTypeAdmin, &actorID, "deposit.credited", &targetID, map[string]any{
		"amount":      in.Amount,
		"new_balance": newBalance,
	})
	return newBalance, nil
}

func (s *Service) Debit(ctx context.Context, in depositdomain.DebitInput) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = s.DebitTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// DebitTx decrements the balance with a single conditional UPDATE. The
// `amount >= ?` guard plus the row lock it takes serialize concurrent debits
// against the same partner: near the balance floor only one of two racing
// debits can match the guard.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, in depositdomain.DebitInput) (int64, error) {
	if in.Amount <= 0 {
		return 0, depositdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE deposit_balances
		 SET amount = amount - ?, version = version + 1, updated_at = ?
		 WHERE partner_id = ? AND amount >= ?`,
		in.Amount, now, in.PartnerID, in.Amount,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		exists, err := s.balanceExists(ctx, tx, in.PartnerID)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, depositdomain.ErrBalanceNotFound
		}
		if s.metrics != nil {
			s.metrics.DebitsRejected.Inc()
		}
		return 0, depositdomain.ErrInsufficientBalance
	}

	newBalance, err := s.balanceOf(ctx, tx, in.PartnerID)
	if err != nil {
		return 0, err
	}

	if err := s.appendEntry(ctx, tx, depositdomain.Entry{
		PartnerID:    in.PartnerID,
		Amount:       -in.Amount,
		Kind:         depositdomain.EntryKindDeduction,
		BalanceAfter: newBalance,
		Description:  in.Description,
		DiagnosisID:  in.DiagnosisID,
	}); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *Service) SubmitRequest(ctx context.Context, partnerID snowflake.ID, amount int64, note string) (depositdomain.Request, error) {
	if amount <= 0 {
		return depositdomain.Request{}, depositdomain.ErrInvalidAmount
	}

	request := depositdomain.Request{
		ID:              s.genID.Generate(),
		PartnerID:       partnerID,
		RequestedAmount: amount,
		Status:          depositdomain.RequestStatusPending,
		PartnerNote:     strings.TrimSpace(note),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.requestRepo.Create(ctx, &request); err != nil {
		return depositdomain.Request{}, err
	}
	return request, nil
}

func (s *Service) ApproveRequest(ctx context.Context, in depositdomain.ApproveInput) (int64, error) {
	if in.ApprovedAmount <= 0 {
		return 0, depositdomain.ErrInvalidAmount
	}

	var newBalance int64
	var requested int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.loadRequestForUpdate(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if request == nil {
			return depositdomain.ErrRequestNotFound
		}
		if request.Status != depositdomain.RequestStatusPending {
			return depositdomain.ErrRequestAlreadyProcessed
		}
		requested = request.RequestedAmount

		now := time.Now().UTC()
		approvedBy := strings.TrimSpace(in.ApprovedBy)
		if err := tx.WithContext(ctx).Exec(
			`UPDATE deposit_requests
			 SET status = ?, approved_amount = ?, admin_note = ?, approved_by = ?, approved_at = ?
			 WHERE id = ?`,
			depositdomain.RequestStatusApproved,
			in.ApprovedAmount,
			strings.TrimSpace(in.AdminNote),
			approvedBy,
			now,
			in.RequestID,
		).Error; err != nil {
			return err
		}

		newBalance, err = s.creditTx(ctx, tx, depositdomain.CreditInput{
			PartnerID:   request.PartnerID,
			Amount:      in.ApprovedAmount,
			Description: fmt.Sprintf("入金申請承認 (%s)", in.RequestID.String()),
			ApprovedBy:  approvedBy,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.DepositsApproved.Inc()
	}
	actorID := strings.TrimSpace(in.ApprovedBy)
	targetID := in.RequestID.String()
	s.audit(ctx, auditdomain.ActorTypeAdmin, &actorID, "deposit.request_approved", &targetID, map[string]any{
		"requested_amount": requested,
		"approved_amount":  in.ApprovedAmount,
		"new_balance":      newBalance,
	})
	return newBalance, nil
}

func (s *Service) RejectRequest(ctx context.Context, requestID snowflake.ID, adminNote, rejectedBy string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.loadRequestForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return depositdomain.ErrRequestNotFound
		}
		if request.Status != depositdomain.RequestStatusPending {
			return depositdomain.ErrRequestAlreadyProcessed
		}

		now := time.Now().UTC()
		return tx.WithContext(ctx).Exec(
			`UPDATE deposit_requests
			 SET status = ?, admin_note = ?, approved_by = ?, approved_at = ?
			 WHERE id = ?`,
			depositdomain.RequestStatusRejected,
			strings.TrimSpace(adminNote),
			strings.TrimSpace(rejectedBy),
			now,
			requestID,
		).Error
	})
	if err != nil {
		return err
	}

	actorID := strings.TrimSpace(rejectedBy)
	targetID := requestID.String()
	s.audit(ctx, auditdomain.ActorTypeAdmin, &actorID, "deposit.request_rejected", &targetID, nil)
	return nil
}

func (s *Service) ListRequests(ctx context.Context, req depositdomain.ListRequestsRequest) (depositdomain.ListRequestsResponse, error) {
	filter := &depositdomain.Request{Status: req.Status}

	total, err := s.requestRepo.Count(ctx, filter)
	if err != nil {
		return depositdomain.ListRequestsResponse{}, err
	}
	rows, err := s.requestRepo.Find(ctx, filter,
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	)
	if err != nil {
		return depositdomain.ListRequestsResponse{}, err
	}

	requests := make([]depositdomain.Request, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			requests = append(requests, *row)
		}
	}
	return depositdomain.ListRequestsResponse{
		PageInfo: pagination.BuildPageInfo(req.Pagination, total),
		Requests: requests,
	}, nil
}

func (s *Service) History(ctx context.Context, req depositdomain.ListHistoryRequest) (depositdomain.ListHistoryResponse, error) {
	filter := &depositdomain.Entry{PartnerID: req.PartnerID}

	total, err := s.entryRepo.Count(ctx, filter)
	if err != nil {
		return depositdomain.ListHistoryResponse{}, err
	}
	rows, err := s.entryRepo.Find(ctx, filter,
		repository.WithOrder("seq DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	)
	if err != nil {
		return depositdomain.ListHistoryResponse{}, err
	}

	entries := make([]depositdomain.Entry, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			entries = append(entries, *row)
		}
	}
	return depositdomain.ListHistoryResponse{
		PageInfo: pagination.BuildPageInfo(req.Pagination, total),
		Entries:  entries,
	}, nil
}

// creditTx upserts the balance row and appends the ledger entry.
func (s *Service) creditTx(ctx context.Context, tx *gorm.DB, in depositdomain.CreditInput) (int64, error) {
	if in.Amount <= 0 {
		return 0, depositdomain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE deposit_balances
		 SET amount = amount + ?, version = version + 1, updated_at = ?
		 WHERE partner_id = ?`,
		in.Amount, now, in.PartnerID,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		if err := tx.WithContext(ctx).Create(&depositdomain.Balance{
			PartnerID: in.PartnerID,
			Amount:    in.Amount,
			Version:   1,
			UpdatedAt: now,
		}).Error; err != nil {
			return 0, err
		}
	}

	newBalance, err := s.balanceOf(ctx, tx, in.PartnerID)
	if err != nil {
		return 0, err
	}

	if err := s.appendEntry(ctx, tx, depositdomain.Entry{
		PartnerID:    in.PartnerID,
		Amount:       in.Amount,
		Kind:         depositdomain.EntryKindDeposit,
		BalanceAfter: newBalance,
		Description:  in.Description,
	}); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// appendEntry assigns the next per-partner sequence number. Safe because the
// caller already holds the balance row lock for this partner.
func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, entry depositdomain.Entry) error {
	var nextSeq int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM deposit_entries WHERE partner_id = ?`,
		entry.PartnerID,
	).Scan(&nextSeq).Error; err != nil {
		return err
	}

	entry.ID = s.genID.Generate()
	entry.Seq = nextSeq
	entry.CreatedAt = time.Now().UTC()
	return tx.WithContext(ctx).Create(&entry).Error
}

func (s *Service) balanceOf(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) (int64, error) {
	var balance depositdomain.Balance
	err := tx.WithContext(ctx).Raw(
		`SELECT partner_id, amount, version FROM deposit_balances WHERE partner_id = ?`,
		partnerID,
	).Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	if balance.PartnerID == 0 {
		return 0, depositdomain.ErrBalanceNotFound
	}
	return balance.Amount, nil
}

func (s *Service) balanceExists(ctx context.Context, tx *gorm.DB, partnerID snowflake.ID) (bool, error) {
	var id snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT partner_id FROM deposit_balances WHERE partner_id = ?`,
		partnerID,
	).Scan(&id).Error
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

func (s *Service) audit(ctx context.Context, actor auditdomain.ActorType, actorID *string, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, actor, actorID, action, "deposit", targetID, metadata); err != nil {
		s.log.Warn("failed to write deposit audit log", zap.Error(err))
	}
}

func (s *Service) loadRequestForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*depositdomain.Request, error) {
	var request depositdomain.Request
	err := tx.WithContext(ctx).Raw(
		`SELECT id, partner_id, requested_amount, approved_amount, status,
		        partner_note, admin_note, approved_by, approved_at, created_at
		 FROM deposit_requests
		 WHERE id = ?`+db.ForUpdate(tx),
		id,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}
