package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/gaihekinavi/platform/internal/audit/domain"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
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
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[auditdomain.AuditLog]
}

func New(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[auditdomain.AuditLog](p.DB),
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType auditdomain.ActorType, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	filter := &auditdomain.AuditLog{
		Action:     strings.TrimSpace(req.Action),
		TargetType: strings.TrimSpace(req.TargetType),
	}
	if id := strings.TrimSpace(req.TargetID); id != "" {
		filter.TargetID = &id
	}

	opts := []repository.QueryOption{
		repository.WithOrder("created_at DESC"),
		repository.WithLimit(req.Limit()),
		repository.WithOffset(req.Offset()),
	}
	if req.StartAt != nil {
		opts = append(opts, repository.WithCondition("created_at >= ?", *req.StartAt))
	}
	if req.EndAt != nil {
		opts = append(opts, repository.WithCondition("created_at <= ?", *req.EndAt))
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	rows, err := s.repo.Find(ctx, filter, opts...)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			logs = append(logs, *row)
		}
	}
	return auditdomain.ListAuditLogResponse{
		PageInfo:  pagination.BuildPageInfo(req.Pagination, total),
		AuditLogs: logs,
	}, nil
}
