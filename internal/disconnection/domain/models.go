// Package domain contains the disconnection notice workflow models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// NoticeStatus tracks a disconnection notice through its workflow.
type NoticeStatus string

const (
	NoticeStatusPending      NoticeStatus = "PENDING"
	NoticeStatusDelivered    NoticeStatus = "DELIVERED"
	NoticeStatusDisconnected NoticeStatus = "DISCONNECTED"
	NoticeStatusReconnected  NoticeStatus = "RECONNECTED"
	NoticeStatusCancelled    NoticeStatus = "CANCELLED"
)

func (s NoticeStatus) Valid() bool {
	switch s {
	case NoticeStatusPending, NoticeStatusDelivered, NoticeStatusDisconnected,
		NoticeStatusReconnected, NoticeStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the workflow allows moving to next.
// PENDING -> DELIVERED or CANCELLED, DELIVERED -> DISCONNECTED or CANCELLED,
// DISCONNECTED -> RECONNECTED. RECONNECTED and CANCELLED are terminal.
func (s NoticeStatus) CanTransition(next NoticeStatus) bool {
	switch s {
	case NoticeStatusPending:
		return next == NoticeStatusDelivered || next == NoticeStatusCancelled
	case NoticeStatusDelivered:
		return next == NoticeStatusDisconnected || next == NoticeStatusCancelled
	case NoticeStatusDisconnected:
		return next == NoticeStatusReconnected
	}
	return false
}

// DisconnectionNotice freezes the amount overdue and the applicable rates at
// issuance time so later tariff changes do not rewrite a served notice.
type DisconnectionNotice struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID    snowflake.ID    `gorm:"not null;index" json:"subscriber_id"`
	BillID          snowflake.ID    `gorm:"not null;index" json:"bill_id"`
	NoticeDate      time.Time       `gorm:"not null" json:"notice_date"`
	AmountOverdue   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount_overdue"`
	PenaltyRatePct  decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"penalty_rate_pct"`
	ReconnectionFee decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"reconnection_fee"`
	Status          NoticeStatus    `gorm:"type:text;not null;index" json:"status"`
	IssuedBy        string          `gorm:"type:text" json:"issued_by,omitempty"`
	Remarks         string          `gorm:"type:text" json:"remarks,omitempty"`
	DisconnectedAt  *time.Time      `json:"disconnected_at,omitempty"`
	ReconnectedAt   *time.Time      `json:"reconnected_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DisconnectionNotice) TableName() string { return "disconnection_notices" }
