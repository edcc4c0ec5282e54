package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/waterworks/internal/config"
	"github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	BillingCfg *config.BillingConfigHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	billingCfg *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("rate.service"),
		genID:      p.GenID,
		billingCfg: p.BillingCfg,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRateRequest) (domain.WaterRate, error) {
	if !req.Classification.Valid() {
		return domain.WaterRate{}, domain.ErrInvalidClass
	}
	if req.MinimumCharge.IsNegative() || req.MinimumVolume.IsNegative() || req.RatePerCubicM.IsNegative() {
		return domain.WaterRate{}, domain.ErrInvalidRate
	}
	if req.EffectiveDate.IsZero() {
		return domain.WaterRate{}, domain.ErrInvalidRate
	}
	effective := truncateToDay(req.EffectiveDate)

	rate := domain.WaterRate{
		ID:             s.genID.Generate(),
		Classification: req.Classification,
		MinimumCharge:  req.MinimumCharge.Round(2),
		MinimumVolume:  req.MinimumVolume.Round(2),
		RatePerCubicM:  req.RatePerCubicM,
		EffectiveDate:  effective,
		IsActive:       true,
		ApprovedBy:     req.ApprovedBy,
		SBResolution:   req.SBResolution,
		CreatedAt:      time.Now().UTC(),
	}

	// Two active rates with the same effective date for one classification
	// would make the lookup ambiguous; reject at creation time.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.WaterRate{}).
			Where("classification = ? AND effective_date = ? AND is_active = ?", req.Classification, effective, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrRateConflict
		}
		return tx.Create(&rate).Error
	})
	if err != nil {
		return domain.WaterRate{}, err
	}

	s.log.Info("water rate created",
		zap.String("rate_id", rate.ID.String()),
		zap.String("classification", string(rate.Classification)),
		zap.String("effective_date", effective.Format("2006-01-02")),
	)
	return rate, nil
}

func (s *Service) ActiveRate(ctx context.Context, class subscriberdomain.Classification, asOf time.Time) (domain.WaterRate, error) {
	if !class.Valid() {
		return domain.WaterRate{}, domain.ErrInvalidClass
	}

	var rates []domain.WaterRate
	err := s.db.WithContext(ctx).
		Where("classification = ? AND is_active = ? AND effective_date <= ?", class, true, truncateToDay(asOf)).
		Order("effective_date DESC, id DESC").
		Limit(1).
		Find(&rates).Error
	if err != nil {
		return domain.WaterRate{}, err
	}
	if len(rates) == 0 {
		return domain.WaterRate{}, domain.ErrRateNotFound
	}
	return rates[0], nil
}

func (s *Service) ComputeWaterCharge(ctx context.Context, sub subscriberdomain.Subscriber, volume decimal.Decimal, asOf time.Time) (domain.Charge, error) {
	if volume.IsNegative() {
		return domain.Charge{}, domain.ErrNegativeVolume
	}

	rate, err := s.ActiveRate(ctx, sub.Classification, asOf)
	if err != nil {
		return domain.Charge{}, err
	}

	return ComputeCharge(rate, volume, sub.IsSenior, s.billingCfg.Get().SeniorDiscountRate()), nil
}

// ComputeCharge applies the tariff to a volume. Consumption at or below the
// minimum volume pays the flat minimum charge; the excess pays per cubic
// meter. Senior subscribers get discountPct percent off, rounded half-up to
// centavos before subtraction.
func ComputeCharge(rate domain.WaterRate, volume decimal.Decimal, senior bool, discountPct decimal.Decimal) domain.Charge {
	charge := rate.MinimumCharge
	if volume.GreaterThan(rate.MinimumVolume) {
		excess := volume.Sub(rate.MinimumVolume)
		charge = rate.MinimumCharge.Add(excess.Mul(rate.RatePerCubicM))
	}

	discount := decimal.Zero
	if senior {
		discount = charge.Mul(discountPct).Div(oneHundred).Round(2)
		charge = charge.Sub(discount)
	}

	return domain.Charge{Amount: charge.Round(2), Discount: discount}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
