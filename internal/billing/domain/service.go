package domain

import (
	"context"
	"errors"
	"time"
)

type GenerateBillRequest struct {
	MeterReadingID string    `json:"meter_reading_id"`
	DueDate        time.Time `json:"due_date"`
	CutoffDate     time.Time `json:"cutoff_date"`
	GeneratedBy    string    `json:"generated_by"`
}

type ListBillRequest struct {
	SubscriberID string
	Status       BillStatus
	Limit        int
}

type Service interface {
	// GenerateBill rates the reading's consumption, folds in arrears from
	// older outstanding bills and any unclaimed other charges, and posts
	// the total to the subscriber's ledger. Exactly one bill exists per
	// reading; regenerating returns ErrDuplicateBill.
	GenerateBill(ctx context.Context, req GenerateBillRequest) (Bill, error)
	GetByID(ctx context.Context, id string) (Bill, error)
	List(ctx context.Context, req ListBillRequest) ([]Bill, error)
}

var (
	ErrInvalidReading = errors.New("invalid_meter_reading")
	ErrInvalidDates   = errors.New("invalid_bill_dates")
	ErrDuplicateBill  = errors.New("duplicate_bill")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("bill_not_found")
)
