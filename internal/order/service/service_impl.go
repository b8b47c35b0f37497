package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	orderrepository "github.com/gaihekinavi/platform/internal/order/repository"
	"github.com/gaihekinavi/platform/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	diagnosisRepo repository.Repository[orderdomain.DiagnosisRequest]
	orderRepo     repository.Repository[orderdomain.Order]
}

func New(p Params) orderdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("order.service"),
		diagnosisRepo: repository.ProvideStore[orderdomain.DiagnosisRequest](p.DB),
		orderRepo:     repository.ProvideStore[orderdomain.Order](p.DB),
	}
}

func (s *Service) GetDiagnosis(ctx context.Context, id snowflake.ID) (orderdomain.DiagnosisRequest, error) {
	diagnosis, err := s.diagnosisRepo.FindOne(ctx, &orderdomain.DiagnosisRequest{ID: id})
	if err != nil {
		return orderdomain.DiagnosisRequest{}, err
	}
	if diagnosis == nil {
		return orderdomain.DiagnosisRequest{}, orderdomain.ErrDiagnosisNotFound
	}
	return *diagnosis, nil
}

func (s *Service) GetOrder(ctx context.Context, id snowflake.ID) (orderdomain.Order, error) {
	order, err := s.orderRepo.FindOne(ctx, &orderdomain.Order{ID: id})
	if err != nil {
		return orderdomain.Order{}, err
	}
	if order == nil {
		return orderdomain.Order{}, orderdomain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) TallyForWindow(ctx context.Context, q orderdomain.TallyQuery) (fees.UsageTally, error) {
	return orderrepository.Tally(ctx, s.db, q)
}
