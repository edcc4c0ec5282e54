package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	"github.com/smallbiznis/waterworks/internal/disconnection/domain"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc  *Service
	db   *gorm.DB
	node *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriberdomain.Subscriber{},
		&billingdomain.Bill{},
		&chargedomain.OtherCharge{},
		&domain.DisconnectionNotice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewBillingConfigHolder()
	require.NoError(t, err)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 25, 9, 0, 0, 0, time.UTC)),
		Billing: holder,
	})

	return &testEnv{svc: svc.(*Service), db: db, node: node}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *testEnv) newOverdueBill(t *testing.T) (subscriberdomain.Subscriber, billingdomain.Bill) {
	t.Helper()

	sub := subscriberdomain.Subscriber{
		ID:             e.node.Generate(),
		AccountNumber:  "ACC-" + e.node.Generate().String(),
		LastName:       "Santos",
		FirstName:      "Jose",
		Classification: subscriberdomain.ClassificationPrivate,
		Status:         subscriberdomain.StatusActive,
		MeterNumber:    "MTR-" + e.node.Generate().String(),
		ConnectionDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		MonthlyMinimum: dec("150.00"),
	}
	require.NoError(t, e.db.Create(&sub).Error)

	bill := billingdomain.Bill{
		ID:             e.node.Generate(),
		SubscriberID:   sub.ID,
		MeterReadingID: e.node.Generate(),
		BillingMonth:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DueDate:        time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		CutoffDate:     time.Date(2026, 2, 21, 0, 0, 0, 0, time.UTC),
		VolumeConsumed: dec("15.00"),
		BasicCharge:    dec("200.00"),
		PenaltyAmount:  dec("20.00"),
		TotalAmountDue: dec("220.00"),
		Balance:        dec("220.00"),
		BillStatus:     billingdomain.BillStatusOverdue,
	}
	require.NoError(t, e.db.Create(&bill).Error)
	return sub, bill
}

func TestIssueNotice_SnapshotsBalanceAndDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bill := env.newOverdueBill(t)

	notice, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{
		BillID:   bill.ID.String(),
		IssuedBy: "officer1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NoticeStatusPending, notice.Status)
	assert.True(t, notice.AmountOverdue.Equal(dec("220.00")), "got %s", notice.AmountOverdue)
	assert.True(t, notice.PenaltyRatePct.Equal(dec("10.00")), "got %s", notice.PenaltyRatePct)
	assert.True(t, notice.ReconnectionFee.Equal(dec("500.00")), "got %s", notice.ReconnectionFee)
}

func TestIssueNotice_RequiresOverdueBill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bill := env.newOverdueBill(t)
	require.NoError(t, env.db.Model(&billingdomain.Bill{}).
		Where("id = ?", bill.ID).
		Update("bill_status", billingdomain.BillStatusUnpaid).Error)

	_, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{BillID: bill.ID.String()})
	assert.ErrorIs(t, err, domain.ErrBillNotOverdue)
}

func TestIssueNotice_RejectsSecondOpenNotice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bill := env.newOverdueBill(t)

	_, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{BillID: bill.ID.String()})
	require.NoError(t, err)

	_, err = env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{BillID: bill.ID.String()})
	assert.ErrorIs(t, err, domain.ErrOpenNoticeExists)
}

func TestNoticeWorkflow_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sub, bill := env.newOverdueBill(t)

	notice, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{
		BillID:   bill.ID.String(),
		IssuedBy: "officer1",
	})
	require.NoError(t, err)

	notice, err = env.svc.MarkDelivered(ctx, notice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.NoticeStatusDelivered, notice.Status)

	notice, err = env.svc.MarkDisconnected(ctx, notice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.NoticeStatusDisconnected, notice.Status)
	require.NotNil(t, notice.DisconnectedAt)

	var got subscriberdomain.Subscriber
	require.NoError(t, env.db.First(&got, "id = ?", sub.ID).Error)
	assert.Equal(t, subscriberdomain.StatusDisconnected, got.Status)

	notice, err = env.svc.MarkReconnected(ctx, notice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.NoticeStatusReconnected, notice.Status)
	require.NotNil(t, notice.ReconnectedAt)

	require.NoError(t, env.db.First(&got, "id = ?", sub.ID).Error)
	assert.Equal(t, subscriberdomain.StatusActive, got.Status)

	// The frozen reconnection fee is queued for the next bill.
	var fee chargedomain.OtherCharge
	require.NoError(t, env.db.First(&fee, "subscriber_id = ? AND charge_type = ?",
		sub.ID, chargedomain.ChargeTypeReconnection).Error)
	assert.True(t, fee.Amount.Equal(dec("500.00")), "got %s", fee.Amount)
	assert.Nil(t, fee.BillID)
}

func TestNoticeWorkflow_InvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bill := env.newOverdueBill(t)

	notice, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{BillID: bill.ID.String()})
	require.NoError(t, err)

	// PENDING cannot jump straight to DISCONNECTED or RECONNECTED.
	_, err = env.svc.MarkDisconnected(ctx, notice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = env.svc.MarkReconnected(ctx, notice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// A cancelled notice is terminal.
	notice, err = env.svc.Cancel(ctx, notice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.NoticeStatusCancelled, notice.Status)

	_, err = env.svc.MarkDelivered(ctx, notice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestNoticeWorkflow_DisconnectedCannotCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, bill := env.newOverdueBill(t)

	notice, err := env.svc.IssueNotice(ctx, domain.IssueNoticeRequest{BillID: bill.ID.String()})
	require.NoError(t, err)

	notice, err = env.svc.MarkDelivered(ctx, notice.ID.String())
	require.NoError(t, err)
	notice, err = env.svc.MarkDisconnected(ctx, notice.ID.String())
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, notice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
