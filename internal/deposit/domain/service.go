package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreditInput struct {
	PartnerID   snowflake.ID
	Amount      int64
	Description string
	ApprovedBy  string
}

type DebitInput struct {
	PartnerID   snowflake.ID
	Amount      int64
	Description string
	DiagnosisID *snowflake.ID
}

type ApproveInput struct {
	RequestID      snowflake.ID
	ApprovedAmount int64
	AdminNote      string
	ApprovedBy     string
}

type ListHistoryRequest struct {
	pagination.Pagination
	PartnerID snowflake.ID
}

type ListHistoryResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type ListRequestsRequest struct {
	pagination.Pagination
	Status RequestStatus
}

type ListRequestsResponse struct {
	pagination.PageInfo
	Requests []Request `json:"requests"`
}

type Service interface {
	// EnsureBalance creates the zero balance row for a new partner.
	EnsureBalance(ctx context.Context, partnerID snowflake.ID) error
	GetBalance(ctx context.Context, partnerID snowflake.ID) (int64, error)
	TotalBalance(ctx context.Context) (int64, error)

	Credit(ctx context.Context, in CreditInput) (int64, error)

	// Debit atomically decrements the balance when it covers the amount and
	// fails with ErrInsufficientBalance otherwise, mutating nothing.
	Debit(ctx context.Context, in DebitInput) (int64, error)

	// DebitTx runs the same conditional debit inside a caller-owned
	// transaction so a referral record and its fee commit or roll back
	// together.
	DebitTx(ctx context.Context, tx *gorm.DB, in DebitInput) (int64, error)

	SubmitRequest(ctx context.Context, partnerID snowflake.ID, amount int64, note string) (Request, error)
	ApproveRequest(ctx context.Context, in ApproveInput) (int64, error)
	RejectRequest(ctx context.Context, requestID snowflake.ID, adminNote, rejectedBy string) error
	ListRequests(ctx context.Context, req ListRequestsRequest) (ListRequestsResponse, error)

	History(ctx context.Context, req ListHistoryRequest) (ListHistoryResponse, error)
}

var (
	ErrInsufficientBalance     = errors.New("insufficient_balance")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrBalanceNotFound         = errors.New("balance_not_found")
	ErrRequestNotFound         = errors.New("deposit_request_not_found")
	ErrRequestAlreadyProcessed = errors.New("deposit_request_already_processed")
)
