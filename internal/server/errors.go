package server

import (
	"errors"
	"net/http"

	custdomain "github.com/gaihekinavi/platform/internal/customerinvoice/domain"
	dashboarddomain "github.com/gaihekinavi/platform/internal/dashboard/domain"
	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	orderdomain "github.com/gaihekinavi/platform/internal/order/domain"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

var badRequestErrors = []error{
	depositdomain.ErrInvalidAmount,
	referraldomain.ErrInvalidFee,
	invoicedomain.ErrInvalidPeriod,
	invoicedomain.ErrUnknownStatus,
	dashboarddomain.ErrInvalidRange,
	orderdomain.ErrInvalidWindow,
	partnerdomain.ErrInvalidName,
	custdomain.ErrNoItems,
	custdomain.ErrInvalidItem,
}

var notFoundErrors = []error{
	partnerdomain.ErrNotFound,
	partnerdomain.ErrFeePlanNotFound,
	orderdomain.ErrDiagnosisNotFound,
	orderdomain.ErrOrderNotFound,
	depositdomain.ErrBalanceNotFound,
	depositdomain.ErrRequestNotFound,
	invoicedomain.ErrInvoiceNotFound,
	custdomain.ErrNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	referraldomain.ErrAlreadyReferred,
	referraldomain.ErrPartnerInactive,
	referraldomain.ErrDiagnosisClosed,
	depositdomain.ErrRequestAlreadyProcessed,
	invoicedomain.ErrNotDraft,
	invoicedomain.ErrInvalidStateTransition,
	invoicedomain.ErrTerminalStatus,
	custdomain.ErrAlreadyInvoiced,
	custdomain.ErrAlreadyPaid,
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// A rejected debit carries its own payload so clients can prompt the
	// partner to top up.
	if errors.Is(err, depositdomain.ErrInsufficientBalance) {
		return http.StatusBadRequest, errorPayload{
			Type:    "insufficient_balance",
			Message: "deposit balance does not cover this operation",
		}
	}

	if errors.Is(err, custdomain.ErrNotOrderOwner) {
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
