// Package domain contains the bill models of the billing engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillStatus tracks the payment lifecycle of a bill.
type BillStatus string

const (
	BillStatusUnpaid     BillStatus = "UNPAID"
	BillStatusPartial    BillStatus = "PARTIAL"
	BillStatusPaid       BillStatus = "PAID"
	BillStatusOverdue    BillStatus = "OVERDUE"
	BillStatusWrittenOff BillStatus = "WRITTEN_OFF"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPartial, BillStatusPaid, BillStatusOverdue, BillStatusWrittenOff:
		return true
	}
	return false
}

// Outstanding reports whether the bill still carries collectible balance.
// WRITTEN_OFF bills are excluded: their balance is forgiven, not owed.
func (s BillStatus) Outstanding() bool {
	switch s {
	case BillStatusUnpaid, BillStatusPartial, BillStatusOverdue:
		return true
	}
	return false
}

// Bill is one month's statement for a subscriber. Every reading produces at
// most one bill; AmountPaid accumulates raw receipts while Balance is clamped
// at zero, so overpayments are absorbed rather than carried as credit.
type Bill struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID   snowflake.ID    `gorm:"not null;index" json:"subscriber_id"`
	MeterReadingID snowflake.ID    `gorm:"not null;uniqueIndex" json:"meter_reading_id"`
	BillingMonth   time.Time       `gorm:"not null;index" json:"billing_month"`
	DueDate        time.Time       `gorm:"not null" json:"due_date"`
	CutoffDate     time.Time       `gorm:"not null" json:"cutoff_date"`
	VolumeConsumed decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"volume_consumed"`
	BasicCharge    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"basic_charge"`
	SeniorDiscount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"senior_discount"`
	OtherCharges   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"other_charges"`
	PenaltyAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"penalty_amount"`
	Arrears        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"arrears"`
	TotalAmountDue decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount_due"`
	AmountPaid     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_paid"`
	Balance        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance"`
	BillStatus     BillStatus      `gorm:"type:text;not null;index" json:"bill_status"`
	GeneratedBy    string          `gorm:"type:text" json:"generated_by,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }
