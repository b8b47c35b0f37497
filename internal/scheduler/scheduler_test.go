package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaihekinavi/platform/internal/clock"
	"github.com/gaihekinavi/platform/internal/config"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubInvoiceService struct {
	invoicedomain.Service

	sweeps    atomic.Int64
	generated atomic.Int64
	lastInput invoicedomain.GenerateInput
}

func (s *stubInvoiceService) SweepOverdue(ctx context.Context) (int64, error) {
	s.sweeps.Add(1)
	return 1, nil
}

func (s *stubInvoiceService) GenerateMonthly(ctx context.Context, in invoicedomain.GenerateInput) ([]invoicedomain.GenerateResult, error) {
	s.generated.Add(1)
	s.lastInput = in
	return nil, nil
}

func newScheduler(stub *stubInvoiceService, cfg config.SchedulerConfig, at time.Time) *Scheduler {
	return New(Params{
		Config:     config.Config{Scheduler: cfg},
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(at),
		InvoiceSvc: stub,
	})
}

func TestRunOnce_SweepsOverdue(t *testing.T) {
	stub := &stubInvoiceService{}
	s := newScheduler(stub,
		config.SchedulerConfig{Enabled: true, RunInterval: time.Hour},
		time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC),
	)

	s.RunOnce(context.Background())
	s.RunOnce(context.Background())
	assert.Equal(t, int64(2), stub.sweeps.Load())
	assert.Equal(t, int64(0), stub.generated.Load())
}

func TestRunOnce_GeneratesLastMonthOnConfiguredDay(t *testing.T) {
	stub := &stubInvoiceService{}
	s := newScheduler(stub,
		config.SchedulerConfig{Enabled: true, RunInterval: time.Hour, GenerateDay: 1},
		time.Date(2026, time.August, 1, 3, 0, 0, 0, time.UTC),
	)

	s.RunOnce(context.Background())
	assert.Equal(t, int64(1), stub.generated.Load())
	assert.Equal(t, 2026, stub.lastInput.Year)
	assert.Equal(t, time.July, stub.lastInput.Month)
	assert.Equal(t, "scheduler", stub.lastInput.GeneratedBy)
}

func TestRunOnce_SkipsGenerationOnOtherDays(t *testing.T) {
	stub := &stubInvoiceService{}
	s := newScheduler(stub,
		config.SchedulerConfig{Enabled: true, RunInterval: time.Hour, GenerateDay: 1},
		time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC),
	)

	s.RunOnce(context.Background())
	assert.Equal(t, int64(0), stub.generated.Load())
}

func TestStartStop_DisabledRunsNothing(t *testing.T) {
	stub := &stubInvoiceService{}
	s := newScheduler(stub,
		config.SchedulerConfig{Enabled: false, RunInterval: time.Millisecond},
		time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC),
	)

	s.Start()
	s.Stop()
	assert.Equal(t, int64(0), stub.sweeps.Load())
}

func TestStartStop_TicksWhileEnabled(t *testing.T) {
	stub := &stubInvoiceService{}
	s := newScheduler(stub,
		config.SchedulerConfig{Enabled: true, RunInterval: 5 * time.Millisecond},
		time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC),
	)

	s.Start()
	require.Eventually(t, func() bool { return stub.sweeps.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	after := stub.sweeps.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, stub.sweeps.Load())
}
