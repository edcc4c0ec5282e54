// Package domain contains the tariff schedule models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
)

// WaterRate is one row of the tariff schedule. Consumption at or below
// MinimumVolume is charged the flat MinimumCharge; each cubic meter above it
// is charged RatePerCubicM.
type WaterRate struct {
	ID             snowflake.ID                    `gorm:"primaryKey" json:"id"`
	Classification subscriberdomain.Classification `gorm:"type:text;not null;index" json:"classification"`
	MinimumCharge  decimal.Decimal                 `gorm:"type:numeric(12,2);not null" json:"minimum_charge"`
	MinimumVolume  decimal.Decimal                 `gorm:"type:numeric(12,2);not null" json:"minimum_volume"`
	RatePerCubicM  decimal.Decimal                 `gorm:"type:numeric(12,4);not null" json:"rate_per_cubic_m"`
	EffectiveDate  time.Time                       `gorm:"not null;index" json:"effective_date"`
	IsActive       bool                            `gorm:"not null;default:true" json:"is_active"`
	ApprovedBy     string                          `gorm:"type:text" json:"approved_by,omitempty"`
	SBResolution   string                          `gorm:"type:text" json:"sb_resolution,omitempty"`
	CreatedAt      time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (WaterRate) TableName() string { return "water_rates" }
