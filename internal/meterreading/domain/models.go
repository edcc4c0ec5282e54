// Package domain contains the monthly meter reading model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MeterReading is one field reading for a subscriber and billing month.
// BillingMonth is always the first day of the month; at most one reading
// exists per (subscriber, billing month) pair.
type MeterReading struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID    snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_readings_subscriber_month,priority:1" json:"subscriber_id"`
	BillingMonth    time.Time       `gorm:"not null;uniqueIndex:ux_readings_subscriber_month,priority:2" json:"billing_month"`
	ReadingDate     time.Time       `gorm:"not null" json:"reading_date"`
	PreviousReading decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"previous_reading"`
	CurrentReading  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"current_reading"`
	ReaderName      string          `gorm:"type:text" json:"reader_name,omitempty"`
	Remarks         string          `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }

// VolumeConsumed returns cubic meters consumed this month.
func (r MeterReading) VolumeConsumed() decimal.Decimal {
	return r.CurrentReading.Sub(r.PreviousReading)
}
