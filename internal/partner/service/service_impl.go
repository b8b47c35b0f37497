package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	"github.com/gaihekinavi/platform/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	partnerRepo repository.Repository[partnerdomain.Partner]
	planRepo    repository.Repository[partnerdomain.FeePlan]
}

func New(p Params) partnerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("partner.service"),
		genID:       p.GenID,
		partnerRepo: repository.ProvideStore[partnerdomain.Partner](p.DB),
		planRepo:    repository.ProvideStore[partnerdomain.FeePlan](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (partnerdomain.Partner, error) {
	partner, err := s.partnerRepo.FindOne(ctx, &partnerdomain.Partner{ID: id})
	if err != nil {
		return partnerdomain.Partner{}, err
	}
	if partner == nil {
		return partnerdomain.Partner{}, partnerdomain.ErrNotFound
	}
	return *partner, nil
}

func (s *Service) List(ctx context.Context) ([]partnerdomain.Partner, error) {
	rows, err := s.partnerRepo.Find(ctx, &partnerdomain.Partner{}, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}
	partners := make([]partnerdomain.Partner, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			partners = append(partners, *row)
		}
	}
	return partners, nil
}

func (s *Service) PlanFor(ctx context.Context, partner partnerdomain.Partner) (fees.Plan, error) {
	var plan *partnerdomain.FeePlan
	var err error

	if partner.FeePlanID != nil {
		plan, err = s.planRepo.FindOne(ctx, &partnerdomain.FeePlan{ID: *partner.FeePlanID})
		if err != nil {
			return fees.Plan{}, err
		}
	}
	if plan == nil {
		plan, err = s.planRepo.FindOne(ctx, &partnerdomain.FeePlan{IsDefault: true})
		if err != nil {
			return fees.Plan{}, err
		}
	}
	if plan == nil {
		return fees.Plan{}, partnerdomain.ErrNoDefaultPlan
	}

	return fees.Plan{
		MonthlyFee:     plan.MonthlyFee,
		PerOrderFee:    plan.PerOrderFee,
		PerProjectFee:  plan.PerProjectFee,
		ProjectFeeRate: plan.ProjectFeeRate,
	}, nil
}

func (s *Service) CreateFeePlan(ctx context.Context, req partnerdomain.CreateFeePlanRequest) (partnerdomain.FeePlan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return partnerdomain.FeePlan{}, partnerdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	plan := partnerdomain.FeePlan{
		ID:             s.genID.Generate(),
		Name:           name,
		MonthlyFee:     req.MonthlyFee,
		PerOrderFee:    req.PerOrderFee,
		PerProjectFee:  req.PerProjectFee,
		ProjectFeeRate: req.ProjectFeeRate,
		IsDefault:      req.IsDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			// Only one plan may be the default.
			if err := tx.WithContext(ctx).Exec(
				`UPDATE fee_plans SET is_default = ?, updated_at = ? WHERE is_default = ?`,
				false, now, true,
			).Error; err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Create(&plan).Error
	})
	if err != nil {
		return partnerdomain.FeePlan{}, err
	}
	return plan, nil
}

func (s *Service) ListFeePlans(ctx context.Context) ([]partnerdomain.FeePlan, error) {
	rows, err := s.planRepo.Find(ctx, &partnerdomain.FeePlan{}, repository.WithOrder("created_at ASC"))
	if err != nil {
		return nil, err
	}
	plans := make([]partnerdomain.FeePlan, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			plans = append(plans, *row)
		}
	}
	return plans, nil
}

func (s *Service) AssignFeePlan(ctx context.Context, partnerID, planID snowflake.ID) error {
	plan, err := s.planRepo.FindOne(ctx, &partnerdomain.FeePlan{ID: planID})
	if err != nil {
		return err
	}
	if plan == nil {
		return partnerdomain.ErrFeePlanNotFound
	}
	return s.setPartnerFields(ctx, partnerID, map[string]any{"fee_plan_id": planID})
}

func (s *Service) SetActive(ctx context.Context, partnerID snowflake.ID, active bool) error {
	return s.setPartnerFields(ctx, partnerID, map[string]any{"active": active})
}

func (s *Service) setPartnerFields(ctx context.Context, partnerID snowflake.ID, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&partnerdomain.Partner{}).Where("id = ?", partnerID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return partnerdomain.ErrNotFound
	}
	return nil
}
