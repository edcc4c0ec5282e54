package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type RecordReadingRequest struct {
	SubscriberID    string          `json:"subscriber_id"`
	BillingMonth    time.Time       `json:"billing_month"`
	ReadingDate     time.Time       `json:"reading_date"`
	PreviousReading decimal.Decimal `json:"previous_reading"`
	CurrentReading  decimal.Decimal `json:"current_reading"`
	ReaderName      string          `json:"reader_name"`
	Remarks         string          `json:"remarks"`
}

type Service interface {
	Record(ctx context.Context, req RecordReadingRequest) (MeterReading, error)
	GetByID(ctx context.Context, id string) (MeterReading, error)
	// ListUnbilled returns the readings of a billing month that have no bill yet.
	ListUnbilled(ctx context.Context, billingMonth time.Time) ([]MeterReading, error)
}

var (
	ErrInvalidSubscriber = errors.New("invalid_subscriber")
	ErrInvalidMonth      = errors.New("invalid_billing_month")
	ErrReadingRegression = errors.New("current_reading_below_previous")
	ErrDuplicateReading  = errors.New("duplicate_reading")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("reading_not_found")
)
