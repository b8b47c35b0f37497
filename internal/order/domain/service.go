package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
)

// TallyQuery scopes a usage tally to one partner and a half-open time window.
// With ExcludeBilled set, orders already carried by a non-cancelled company
// invoice are left out; invoice generation relies on this for idempotency.
type TallyQuery struct {
	PartnerID     snowflake.ID
	Start         time.Time
	End           time.Time
	ExcludeBilled bool
}

type Service interface {
	GetDiagnosis(ctx context.Context, id snowflake.ID) (DiagnosisRequest, error)
	GetOrder(ctx context.Context, id snowflake.ID) (Order, error)

	// TallyForWindow recomputes a partner's usage from order data. Tallies
	// are never persisted; reporting and billing both call this.
	TallyForWindow(ctx context.Context, q TallyQuery) (fees.UsageTally, error)
}

var (
	ErrDiagnosisNotFound = errors.New("diagnosis_not_found")
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrInvalidWindow     = errors.New("invalid_window")
)
