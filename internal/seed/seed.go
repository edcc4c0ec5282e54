// Package seed provisions the default tariff schedule so a fresh install can
// bill immediately.
package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"gorm.io/gorm"
)

var defaultEffectiveDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type defaultRate struct {
	classification subscriberdomain.Classification
	minimumCharge  string
	minimumVolume  string
	ratePerCubicM  string
}

var defaultRates = []defaultRate{
	{subscriberdomain.ClassificationPrivate, "150.00", "10.00", "15.50"},
	{subscriberdomain.ClassificationCommercial, "250.00", "10.00", "18.00"},
	{subscriberdomain.ClassificationGovernment, "200.00", "10.00", "16.00"},
}

// EnsureDefaultRates inserts the standard tariff per classification when the
// classification has no rate yet. Existing schedules are never touched.
func EnsureDefaultRates(db *gorm.DB, genID *snowflake.Node) error {
	for _, r := range defaultRates {
		var count int64
		if err := db.Model(&ratedomain.WaterRate{}).
			Where("classification = ?", r.classification).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		rate := ratedomain.WaterRate{
			ID:             genID.Generate(),
			Classification: r.classification,
			MinimumCharge:  decimal.RequireFromString(r.minimumCharge),
			MinimumVolume:  decimal.RequireFromString(r.minimumVolume),
			RatePerCubicM:  decimal.RequireFromString(r.ratePerCubicM),
			EffectiveDate:  defaultEffectiveDate,
			IsActive:       true,
			ApprovedBy:     "system",
			CreatedAt:      time.Now().UTC(),
		}
		if err := db.Create(&rate).Error; err != nil {
			return err
		}
	}
	return nil
}
