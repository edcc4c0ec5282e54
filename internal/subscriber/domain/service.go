package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type CreateSubscriberRequest struct {
	AccountNumber  string          `json:"account_number"`
	LastName       string          `json:"last_name"`
	FirstName      string          `json:"first_name"`
	MiddleName     string          `json:"middle_name"`
	Address        string          `json:"address"`
	Barangay       string          `json:"barangay"`
	ContactNumber  string          `json:"contact_number"`
	Email          string          `json:"email"`
	Classification Classification  `json:"classification"`
	MeterNumber    string          `json:"meter_number"`
	MeterSize      string          `json:"meter_size"`
	ServiceAddress string          `json:"service_address"`
	MonthlyMinimum decimal.Decimal `json:"monthly_minimum"`
	IsSenior       bool            `json:"is_senior"`
}

type ListSubscriberRequest struct {
	Classification Classification
	Status         Status
	Limit          int
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriberRequest) (Subscriber, error)
	GetByID(ctx context.Context, id string) (Subscriber, error)
	List(ctx context.Context, req ListSubscriberRequest) ([]Subscriber, error)
}

var (
	ErrInvalidAccountNumber = errors.New("invalid_account_number")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidClass         = errors.New("invalid_classification")
	ErrInvalidMeterNumber   = errors.New("invalid_meter_number")
	ErrDuplicateAccount     = errors.New("duplicate_account")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("subscriber_not_found")
)
