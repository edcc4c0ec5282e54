package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type IssueNoticeRequest struct {
	BillID string `json:"bill_id"`
	// PenaltyRatePct and ReconnectionFee default to the configured values
	// when zero; the resolved figures are frozen on the notice.
	PenaltyRatePct  decimal.Decimal `json:"penalty_rate_pct"`
	ReconnectionFee decimal.Decimal `json:"reconnection_fee"`
	IssuedBy        string          `json:"issued_by"`
	Remarks         string          `json:"remarks"`
}

type Service interface {
	// IssueNotice opens a PENDING notice against an overdue bill,
	// snapshotting the bill's balance as the amount overdue.
	IssueNotice(ctx context.Context, req IssueNoticeRequest) (DisconnectionNotice, error)
	GetByID(ctx context.Context, id string) (DisconnectionNotice, error)
	// MarkDelivered records that the field team served the notice.
	MarkDelivered(ctx context.Context, id string) (DisconnectionNotice, error)
	// MarkDisconnected records the physical disconnection and moves the
	// subscriber to DISCONNECTED.
	MarkDisconnected(ctx context.Context, id string) (DisconnectionNotice, error)
	// MarkReconnected restores the subscriber to ACTIVE and raises the
	// frozen reconnection fee as an other charge for the next bill.
	MarkReconnected(ctx context.Context, id string) (DisconnectionNotice, error)
	// Cancel voids a notice that has not led to a disconnection.
	Cancel(ctx context.Context, id string) (DisconnectionNotice, error)
}

var (
	ErrInvalidBill       = errors.New("invalid_bill")
	ErrBillNotOverdue    = errors.New("bill_not_overdue")
	ErrOpenNoticeExists  = errors.New("open_notice_exists")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("notice_not_found")
	ErrInvalidTransition = errors.New("invalid_notice_transition")
)
