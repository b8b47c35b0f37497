package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	"github.com/gaihekinavi/platform/internal/config"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	"github.com/gaihekinavi/platform/internal/notification"
	obsmetrics "github.com/gaihekinavi/platform/internal/observability/metrics"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
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
	Config     config.Config
	PartnerSvc partnerdomain.Service
	OrderSvc   orderdomain.Service
	DepositSvc depositdomain.Service
	Sender     notification.Sender
	AuditSvc   auditdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	cfg          config.Config
	partnerSvc   partnerdomain.Service
	orderSvc     orderdomain.Service
	depositSvc   depositdomain.Service
	sender       notification.Sender
	auditSvc     auditdomain.Service
	metrics      *obsmetrics.Metrics
	referralRepo repository.Repository[referraldomain.Referral]
}

func New(p Params) referraldomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("referral.service"),
		genID:        p.GenID,
		cfg:          p.Config,
		partnerSvc:   p.PartnerSvc,
		orderSvc:     p.OrderSvc,
		depositSvc:   p.DepositSvc,
		sender:       p.Sender,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
		referralRepo: repository.ProvideStore[referraldomain.Referral](p.DB),
	}
}

func (s *Service) Assign(ctx context.Context, in referraldomain.AssignInput) (referraldomain.Referral, error) {
	diagnosis, err := s.orderSvc.GetDiagnosis(ctx, in.DiagnosisID)
	if err != nil {
		return referraldomain.Referral{}, err
	}
	if diagnosis.Status == orderdomain.DiagnosisStatusClosed {
		return referraldomain.Referral{}, referraldomain.ErrDiagnosisClosed
	}

	partner, err := s.partnerSvc.GetByID(ctx, in.PartnerID)
	if err != nil {
		return referraldomain.Referral{}, err
	}
	if !partner.Active {
		return referraldomain.Referral{}, referraldomain.ErrPartnerInactive
	}

	fee, err := s.resolveFee(in, diagnosis)
	if err != nil {
		return referraldomain.Referral{}, err
	}

	referral := referraldomain.Referral{
		ID:          s.genID.Generate(),
		DiagnosisID: in.DiagnosisID,
		PartnerID:   in.PartnerID,
		ReferralFee: fee,
		CreatedAt:   time.Now().UTC(),
	}

	var newBalance int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&referral).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return referraldomain.ErrAlreadyReferred
			}
			return err
		}

		diagnosisID := in.DiagnosisID
		newBalance, err = s.depositSvc.DebitTx(ctx, tx, depositdomain.DebitInput{
			PartnerID:   in.PartnerID,
			Amount:      fee,
			Description: fmt.Sprintf("案件紹介料 (%s)", diagnosis.DiagnosisNumber),
			DiagnosisID: &diagnosisID,
		})
		if err != nil {
			return err
		}

		// A pending diagnosis becomes referred on its first assignment.
		return tx.WithContext(ctx).Exec(
			`UPDATE diagnosis_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			orderdomain.DiagnosisStatusReferred,
			time.Now().UTC(),
			in.DiagnosisID,
			orderdomain.DiagnosisStatusPending,
		).Error
	})
	if err != nil {
		return referraldomain.Referral{}, err
	}

	if s.metrics != nil {
		s.metrics.ReferralsAssigned.Inc()
	}
	actorID := strings.TrimSpace(in.AssignedBy)
	targetID := referral.ID.String()
	s.audit(ctx, &actorID, "referral.assigned", &targetID, map[string]any{
		"diagnosis_id": in.DiagnosisID.String(),
		"partner_id":   in.PartnerID.String(),
		"referral_fee": fee,
		"new_balance":  newBalance,
	})

	s.notifyAsync(referral, partner, diagnosis, newBalance)
	return referral, nil
}

func (s *Service) List(ctx context.Context, req referraldomain.ListReferralsRequest) (referraldomain.ListReferralsResponse, error) {
	filter := &referraldomain.Referral{
		PartnerID:   req.PartnerID,
		DiagnosisID: req.DiagnosisID,
	}

	total, err := s.referralRepo.Count(ctx, filter)
	if err != nil {
		return referraldomain.ListReferralsResponse{}, err
	}
	rows, err := s.referralRepo.Find(ctx, filter,
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	)
	if err != nil {
		return referraldomain.ListReferralsResponse{}, err
	}

	referrals := make([]referraldomain.Referral, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			referrals = append(referrals, *row)
		}
	}
	return referraldomain.ListReferralsResponse{
		PageInfo:  pagination.BuildPageInfo(req.Pagination, total),
		Referrals: referrals,
	}, nil
}

// resolveFee picks the first fee in the chain: explicit input, diagnosis-level
// override, platform default.
func (s *Service) resolveFee(in referraldomain.AssignInput, diagnosis orderdomain.DiagnosisRequest) (int64, error) {
	fee := s.cfg.Billing.DefaultReferralFee
	if diagnosis.ReferralFee != nil {
		fee = *diagnosis.ReferralFee
	}
	if in.Fee != nil {
		fee = *in.Fee
	}
	if fee <= 0 {
		return 0, referraldomain.ErrInvalidFee
	}
	return fee, nil
}

// notifyAsync sends the referral email after commit and records the delivery
// outcome on the referral row. Failures are logged, never returned.
func (s *Service) notifyAsync(referral referraldomain.Referral, partner partnerdomain.Partner, diagnosis orderdomain.DiagnosisRequest, newBalance int64) {
	if s.sender == nil || partner.Email == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := s.sender.SendReferralNotification(ctx, notification.ReferralNotice{
			To:              partner.Email,
			CompanyName:     partner.CompanyName,
			DiagnosisNumber: diagnosis.DiagnosisNumber,
			CustomerName:    diagnosis.CustomerName,
			Prefecture:      diagnosis.Prefecture,
			ReferralFee:     referral.ReferralFee,
			NewBalance:      newBalance,
		})
		if err != nil {
			s.log.Warn("referral notification failed",
				zap.String("referral_id", referral.ID.String()),
				zap.Error(err),
			)
			return
		}

		now := time.Now().UTC()
		if err := s.db.WithContext(ctx).Exec(
			`UPDATE referrals SET email_sent = ?, email_sent_at = ? WHERE id = ?`,
			true, now, referral.ID,
		).Error; err != nil {
			s.log.Warn("failed to record referral email delivery",
				zap.String("referral_id", referral.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) audit(ctx context.Context, actorID *string, action string, targetID *string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, actorID, action, "referral", targetID, metadata); err != nil {
		s.log.Warn("failed to write referral audit log", zap.Error(err))
	}
}
