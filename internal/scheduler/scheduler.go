// Package scheduler runs the periodic billing jobs: the overdue sweep and,
// when a generation day is configured, last month's invoice generation.
// Both jobs are idempotent, so overlapping runs from multiple replicas are
// harmless.
package scheduler

import (
	"context"
	"time"

	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	InvoiceSvc invoicedomain.Service
}

type Scheduler struct {
	cfg        config.SchedulerConfig
	log        *zap.Logger
	clock      clock.Clock
	invoiceSvc invoicedomain.Service

	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) *Scheduler {
	cfg := p.Config.Scheduler
	if cfg.RunInterval <= 0 {
		cfg.RunInterval = time.Hour
	}
	return &Scheduler{
		cfg:        cfg,
		log:        p.Log.Named("scheduler"),
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
		done:       make(chan struct{}),
	}
}

// Start launches the job loop. It returns immediately; jobs run until Stop.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		close(s.done)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.RunInterval)
		defer ticker.Stop()

		s.log.Info("scheduler started", zap.Duration("interval", s.cfg.RunInterval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// RunOnce executes one pass of every scheduled job.
func (s *Scheduler) RunOnce(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	moved, err := s.invoiceSvc.SweepOverdue(jobCtx)
	if err != nil {
		s.log.Error("overdue sweep failed", zap.Error(err))
	} else if moved > 0 {
		s.log.Info("overdue sweep complete", zap.Int64("moved", moved))
	}

	s.generateIfDue(jobCtx)
}

// generateIfDue runs last month's invoice generation on the configured day.
// Repeated runs within the day only produce skipped results thanks to the
// per-partner period guard.
func (s *Scheduler) generateIfDue(ctx context.Context) {
	if s.cfg.GenerateDay <= 0 {
		return
	}
	now := s.clock.Now()
	if now.Day() != s.cfg.GenerateDay {
		return
	}

	prev := now.AddDate(0, -1, -now.Day()+1)
	results, err := s.invoiceSvc.GenerateMonthly(ctx, invoicedomain.GenerateInput{
		Year:        prev.Year(),
		Month:       prev.Month(),
		GeneratedBy: "scheduler",
	})
	if err != nil {
		s.log.Error("monthly generation failed", zap.Error(err))
		return
	}

	var created, skipped, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			created++
		}
	}
	if created > 0 || failed > 0 {
		s.log.Info("monthly generation complete",
			zap.Int("year", prev.Year()),
			zap.Int("month", int(prev.Month())),
			zap.Int("created", created),
			zap.Int("skipped", skipped),
			zap.Int("failed", failed),
		)
	}
}
