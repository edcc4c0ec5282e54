package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	paymentdomain "github.com/smallbiznis/waterworks/internal/payment/domain"
	penaltydomain "github.com/smallbiznis/waterworks/internal/penalty/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the last gin error as a JSON payload when
// no handler has written a response yet.
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

var notFoundErrors = []error{
	subscriberdomain.ErrNotFound,
	readingdomain.ErrNotFound,
	billingdomain.ErrNotFound,
	disconnectiondomain.ErrNotFound,
	ratedomain.ErrRateNotFound,
}

var conflictErrors = []error{
	subscriberdomain.ErrDuplicateAccount,
	readingdomain.ErrDuplicateReading,
	billingdomain.ErrDuplicateBill,
	ratedomain.ErrRateConflict,
	disconnectiondomain.ErrOpenNoticeExists,
}

var badRequestErrors = []error{
	subscriberdomain.ErrInvalidAccountNumber,
	subscriberdomain.ErrInvalidName,
	subscriberdomain.ErrInvalidClass,
	subscriberdomain.ErrInvalidMeterNumber,
	subscriberdomain.ErrInvalidID,
	readingdomain.ErrInvalidSubscriber,
	readingdomain.ErrInvalidMonth,
	readingdomain.ErrReadingRegression,
	readingdomain.ErrInvalidID,
	billingdomain.ErrInvalidReading,
	billingdomain.ErrInvalidDates,
	billingdomain.ErrInvalidID,
	paymentdomain.ErrInvalidBill,
	paymentdomain.ErrInvalidAmount,
	penaltydomain.ErrInvalidBill,
	penaltydomain.ErrInvalidRate,
	disconnectiondomain.ErrInvalidBill,
	disconnectiondomain.ErrInvalidID,
	ratedomain.ErrInvalidClass,
	ratedomain.ErrInvalidRate,
	ratedomain.ErrNegativeVolume,
	chargedomain.ErrInvalidSubscriber,
	chargedomain.ErrInvalidChargeType,
	chargedomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidSubscriber,
}

var unprocessableErrors = []error{
	paymentdomain.ErrBillClosed,
	disconnectiondomain.ErrBillNotOverdue,
	disconnectiondomain.ErrInvalidTransition,
}

func mapError(err error) (int, errorPayload) {
	switch {
	case matchAny(err, notFoundErrors):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case matchAny(err, conflictErrors):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case matchAny(err, badRequestErrors):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}
	case matchAny(err, unprocessableErrors):
		return http.StatusUnprocessableEntity, errorPayload{Type: "unprocessable", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
	}
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
