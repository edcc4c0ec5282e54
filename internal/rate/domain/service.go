package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
)

type CreateRateRequest struct {
	Classification subscriberdomain.Classification `json:"classification"`
	MinimumCharge  decimal.Decimal                 `json:"minimum_charge"`
	MinimumVolume  decimal.Decimal                 `json:"minimum_volume"`
	RatePerCubicM  decimal.Decimal                 `json:"rate_per_cubic_m"`
	EffectiveDate  time.Time                       `json:"effective_date"`
	ApprovedBy     string                          `json:"approved_by"`
	SBResolution   string                          `json:"sb_resolution"`
}

// Charge is the outcome of rating a consumption volume: the post-discount
// water charge and the senior discount taken off it. The pre-discount figure
// is Amount.Add(Discount); both are kept so bills stay transparent.
type Charge struct {
	Amount   decimal.Decimal
	Discount decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, req CreateRateRequest) (WaterRate, error)
	// ActiveRate returns the tariff for a classification effective on or
	// before asOf; the most recent effective date wins.
	ActiveRate(ctx context.Context, class subscriberdomain.Classification, asOf time.Time) (WaterRate, error)
	// ComputeWaterCharge rates a consumption volume for a subscriber,
	// applying the senior-citizen discount where it is flagged.
	ComputeWaterCharge(ctx context.Context, sub subscriberdomain.Subscriber, volume decimal.Decimal, asOf time.Time) (Charge, error)
}

var (
	ErrRateNotFound   = errors.New("rate_not_found")
	ErrRateConflict   = errors.New("rate_conflict")
	ErrInvalidClass   = errors.New("invalid_classification")
	ErrInvalidRate    = errors.New("invalid_rate")
	ErrNegativeVolume = errors.New("negative_volume")
)
