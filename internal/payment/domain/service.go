// Package domain describes payment application against bills.
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
)

type ProcessPaymentRequest struct {
	BillID        string          `json:"bill_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptNumber string          `json:"receipt_number"`
	ReceivedBy    string          `json:"received_by"`
	Remarks       string          `json:"remarks"`
}

type Service interface {
	// ProcessPayment applies a tendered amount to a bill, updates its
	// status and posts a PAYMENT credit to the subscriber's ledger.
	// AmountPaid accumulates the raw tender; Balance never drops below
	// zero, so an overpayment is absorbed rather than carried as credit.
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (billingdomain.Bill, error)
}

var (
	ErrInvalidBill   = errors.New("invalid_bill")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrBillClosed    = errors.New("bill_not_payable")
)
