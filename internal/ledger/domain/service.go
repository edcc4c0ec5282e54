package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AppendRequest describes one posting. Exactly one of Debit/Credit should be
// non-zero; both must be non-negative.
type AppendRequest struct {
	SubscriberID  snowflake.ID
	BillID        *snowflake.ID
	EntryDate     time.Time
	EntryType     EntryType
	Description   string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ReceiptNumber string
	ReceivedBy    string
}

type Service interface {
	// AppendTx posts one entry inside the caller's transaction, computing
	// the running-balance snapshot from the live log as seen by tx.
	AppendTx(ctx context.Context, tx *gorm.DB, req AppendRequest) (LedgerEntry, error)
	// RunningBalance recomputes the subscriber's balance from the full log.
	RunningBalance(ctx context.Context, subscriberID snowflake.ID) (decimal.Decimal, error)
	// List returns the subscriber's entries in posting order.
	List(ctx context.Context, subscriberID snowflake.ID) ([]LedgerEntry, error)
	// VerifySnapshots recomputes every cached running balance and fails on
	// the first entry whose snapshot disagrees with the log.
	VerifySnapshots(ctx context.Context, subscriberID snowflake.ID) error
}

var (
	ErrInvalidSubscriber = errors.New("invalid_subscriber")
	ErrInvalidEntryType  = errors.New("invalid_entry_type")
	ErrInvalidAmounts    = errors.New("invalid_entry_amounts")
	ErrSnapshotMismatch  = errors.New("running_balance_snapshot_mismatch")
)
