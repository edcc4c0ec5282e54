// Package domain describes late-payment penalty assessment.
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
)

type ApplyPenaltyRequest struct {
	BillID string `json:"bill_id"`
	// RatePct overrides the configured penalty rate when non-zero,
	// expressed in percent of the outstanding balance.
	RatePct decimal.Decimal `json:"rate_pct"`
}

type Service interface {
	// ApplyPenalty surcharges an overdue bill's outstanding balance and
	// marks it OVERDUE. Bills that are not UNPAID or PARTIAL are returned
	// unchanged; assessing twice is therefore a no-op, not an error.
	ApplyPenalty(ctx context.Context, req ApplyPenaltyRequest) (billingdomain.Bill, error)
}

var (
	ErrInvalidBill = errors.New("invalid_bill")
	ErrInvalidRate = errors.New("invalid_penalty_rate")
)
