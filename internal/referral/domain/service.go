package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
)

// AssignInput describes one referral assignment. Fee overrides the resolution
// chain when set; otherwise the diagnosis-level fee applies, falling back to
// the platform default.
type AssignInput struct {
	DiagnosisID snowflake.ID
	PartnerID   snowflake.ID
	Fee         *int64
	AssignedBy  string
}

type ListReferralsRequest struct {
	pagination.Pagination
	PartnerID   snowflake.ID
	DiagnosisID snowflake.ID
}

type ListReferralsResponse struct {
	pagination.PageInfo
	Referrals []Referral `json:"referrals"`
}

type Service interface {
	// Assign creates the referral and debits the fee from the partner's
	// deposit in one transaction. Either both happen or neither does.
	Assign(ctx context.Context, in AssignInput) (Referral, error)

	List(ctx context.Context, req ListReferralsRequest) (ListReferralsResponse, error)
}

var (
	ErrAlreadyReferred = errors.New("already_referred")
	ErrPartnerInactive = errors.New("partner_inactive")
	ErrDiagnosisClosed = errors.New("diagnosis_closed")
	ErrInvalidFee      = errors.New("invalid_referral_fee")
)
