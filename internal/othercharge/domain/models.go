// Package domain contains non-metered charge models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ChargeType classifies a non-metered fee.
type ChargeType string

const (
	ChargeTypePenalty      ChargeType = "PENALTY"
	ChargeTypeReconnection ChargeType = "RECONNECTION"
	ChargeTypeMaterial     ChargeType = "MATERIAL"
	ChargeTypeLabor        ChargeType = "LABOR"
	ChargeTypeMeterRepl    ChargeType = "METER_REPL"
	ChargeTypeCustom       ChargeType = "CUSTOM"
)

func (c ChargeType) Valid() bool {
	switch c {
	case ChargeTypePenalty, ChargeTypeReconnection, ChargeTypeMaterial,
		ChargeTypeLabor, ChargeTypeMeterRepl, ChargeTypeCustom:
		return true
	}
	return false
}

// OtherCharge is a fee raised outside metered consumption (materials, labor,
// reconnection). It is created unattached; the next generated bill claims it
// exactly once by setting BillID, after which it never rolls into another
// bill even while unpaid.
type OtherCharge struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID snowflake.ID    `gorm:"not null;index" json:"subscriber_id"`
	BillID       *snowflake.ID   `gorm:"index" json:"bill_id,omitempty"`
	ChargeType   ChargeType      `gorm:"type:text;not null" json:"charge_type"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	ChargeDate   time.Time       `gorm:"not null" json:"charge_date"`
	AppliedBy    string          `gorm:"type:text" json:"applied_by,omitempty"`
	IsPaid       bool            `gorm:"not null;default:false" json:"is_paid"`
	Remarks      string          `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OtherCharge) TableName() string { return "other_charges" }
