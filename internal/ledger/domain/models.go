// Package domain contains the subscriber ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger posting.
type EntryType string

const (
	EntryTypeBilling      EntryType = "BILLING"
	EntryTypePayment      EntryType = "PAYMENT"
	EntryTypePenalty      EntryType = "PENALTY"
	EntryTypeAdjustment   EntryType = "ADJUSTMENT"
	EntryTypeReconnection EntryType = "RECONNECTION"
	EntryTypeMaterial     EntryType = "MATERIAL"
	EntryTypeDiscount     EntryType = "DISCOUNT"
	EntryTypeOther        EntryType = "OTHER"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeBilling, EntryTypePayment, EntryTypePenalty, EntryTypeAdjustment,
		EntryTypeReconnection, EntryTypeMaterial, EntryTypeDiscount, EntryTypeOther:
		return true
	}
	return false
}

// LedgerEntry is one immutable row of a subscriber's debit/credit log,
// ordered by (entry_date, id). RunningBalance is a snapshot cached at
// insertion time; the append-only log remains authoritative and
// VerifySnapshots recomputes and compares the two.
type LedgerEntry struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID   snowflake.ID    `gorm:"not null;index" json:"subscriber_id"`
	BillID         *snowflake.ID   `gorm:"index" json:"bill_id,omitempty"`
	EntryDate      time.Time       `gorm:"not null;index" json:"entry_date"`
	EntryType      EntryType       `gorm:"type:text;not null" json:"entry_type"`
	Description    string          `gorm:"type:text;not null" json:"description"`
	Debit          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"debit"`
	Credit         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"credit"`
	RunningBalance decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"running_balance"`
	ReceiptNumber  string          `gorm:"type:text" json:"receipt_number,omitempty"`
	ReceivedBy     string          `gorm:"type:text" json:"received_by,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }
