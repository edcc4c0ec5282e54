package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type CreateChargeRequest struct {
	SubscriberID string          `json:"subscriber_id"`
	ChargeType   ChargeType      `json:"charge_type"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	ChargeDate   time.Time       `json:"charge_date"`
	AppliedBy    string          `json:"applied_by"`
	Remarks      string          `json:"remarks"`
}

type Service interface {
	Create(ctx context.Context, req CreateChargeRequest) (OtherCharge, error)
	ListBySubscriber(ctx context.Context, subscriberID string) ([]OtherCharge, error)
}

var (
	ErrInvalidSubscriber = errors.New("invalid_subscriber")
	ErrInvalidChargeType = errors.New("invalid_charge_type")
	ErrInvalidAmount     = errors.New("invalid_amount")
)
