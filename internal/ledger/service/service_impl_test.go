package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/waterworks/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.LedgerEntry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return svc.(*Service), db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func postEntry(t *testing.T, svc *Service, db *gorm.DB, req domain.AppendRequest) domain.LedgerEntry {
	t.Helper()

	var entry domain.LedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = svc.AppendTx(context.Background(), tx, req)
		return err
	})
	require.NoError(t, err)
	return entry
}

func TestAppendTx_RunningBalanceSnapshots(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	subID := snowflake.ID(1001)

	bill := postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypeBilling,
		Description:  "Water Bill for March 2026",
		Debit:        dec("227.50"),
		EntryDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.True(t, bill.RunningBalance.Equal(dec("227.50")), "got %s", bill.RunningBalance)

	payment := postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID:  subID,
		EntryType:     domain.EntryTypePayment,
		Description:   "Payment for March 2026 bill",
		Credit:        dec("200.00"),
		ReceiptNumber: "OR-3001",
	})
	assert.True(t, payment.RunningBalance.Equal(dec("27.50")), "got %s", payment.RunningBalance)

	penalty := postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypePenalty,
		Description:  "Late payment penalty",
		Debit:        dec("2.75"),
	})
	assert.True(t, penalty.RunningBalance.Equal(dec("30.25")), "got %s", penalty.RunningBalance)

	// The live recomputation, the cached snapshot on the latest entry and
	// the full replay all agree.
	balance, err := svc.RunningBalance(ctx, subID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("30.25")), "got %s", balance)
	require.NoError(t, svc.VerifySnapshots(ctx, subID))
}

func TestAppendTx_RejectsInvalidPostings(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.AppendRequest
		want error
	}{
		{"missing subscriber", domain.AppendRequest{
			EntryType: domain.EntryTypeBilling, Debit: dec("10.00"),
		}, domain.ErrInvalidSubscriber},
		{"unknown entry type", domain.AppendRequest{
			SubscriberID: 1, EntryType: "VOID", Debit: dec("10.00"),
		}, domain.ErrInvalidEntryType},
		{"both sides zero", domain.AppendRequest{
			SubscriberID: 1, EntryType: domain.EntryTypeBilling,
		}, domain.ErrInvalidAmounts},
		{"both sides set", domain.AppendRequest{
			SubscriberID: 1, EntryType: domain.EntryTypeBilling,
			Debit: dec("10.00"), Credit: dec("5.00"),
		}, domain.ErrInvalidAmounts},
		{"negative debit", domain.AppendRequest{
			SubscriberID: 1, EntryType: domain.EntryTypeBilling,
			Debit: dec("-10.00"),
		}, domain.ErrInvalidAmounts},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := svc.AppendTx(ctx, tx, tc.req)
				return err
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifySnapshots_DetectsTamperedSnapshot(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	subID := snowflake.ID(2002)

	postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypeBilling,
		Description:  "Water Bill for March 2026",
		Debit:        dec("100.00"),
	})
	tampered := postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypePayment,
		Description:  "Payment",
		Credit:       dec("40.00"),
	})

	require.NoError(t, db.Model(&domain.LedgerEntry{}).
		Where("id = ?", tampered.ID).
		Update("running_balance", dec("99.99")).Error)

	err := svc.VerifySnapshots(ctx, subID)
	assert.ErrorIs(t, err, domain.ErrSnapshotMismatch)
}

func TestList_OrdersByEntryDate(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	subID := snowflake.ID(3003)

	// Posted out of calendar order: the payment lands first but is dated
	// after the bill.
	postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypePayment,
		Description:  "Payment",
		Credit:       dec("50.00"),
		EntryDate:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	postEntry(t, svc, db, domain.AppendRequest{
		SubscriberID: subID,
		EntryType:    domain.EntryTypeBilling,
		Description:  "Water Bill for March 2026",
		Debit:        dec("150.00"),
		EntryDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	entries, err := svc.List(ctx, subID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryTypeBilling, entries[0].EntryType)
	assert.Equal(t, domain.EntryTypePayment, entries[1].EntryType)

	// Snapshot verification follows posting order and stays consistent.
	require.NoError(t, svc.VerifySnapshots(ctx, subID))
}
