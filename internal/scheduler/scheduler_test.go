package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	billingservice "github.com/smallbiznis/waterworks/internal/billing/service"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	disconnectionservice "github.com/smallbiznis/waterworks/internal/disconnection/service"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/waterworks/internal/ledger/service"
	"github.com/smallbiznis/waterworks/internal/locking"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	readingservice "github.com/smallbiznis/waterworks/internal/meterreading/service"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	penaltyservice "github.com/smallbiznis/waterworks/internal/penalty/service"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	rateservice "github.com/smallbiznis/waterworks/internal/rate/service"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	sched *Scheduler
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriberdomain.Subscriber{},
		&ratedomain.WaterRate{},
		&readingdomain.MeterReading{},
		&chargedomain.OtherCharge{},
		&billingdomain.Bill{},
		&ledgerdomain.LedgerEntry{},
		&disconnectiondomain.DisconnectionNotice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewBillingConfigHolder()
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC))
	locks := locking.NewKeyedMutex()
	log := zap.NewNop()

	rates := rateservice.New(rateservice.Params{
		DB: db, Log: log, GenID: node, BillingCfg: holder,
	})
	ledger := ledgerservice.New(ledgerservice.Params{
		DB: db, Log: log, GenID: node,
	})
	readings := readingservice.New(readingservice.Params{
		DB: db, Log: log, GenID: node,
	})
	bills := billingservice.New(billingservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Locks: locks,
		Rates: rates, Ledger: ledger, Billing: holder,
	})
	penalties := penaltyservice.New(penaltyservice.Params{
		DB: db, Log: log, Clock: fake, Locks: locks,
		Ledger: ledger, Billing: holder,
	})
	notices := disconnectionservice.New(disconnectionservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Billing: holder,
	})

	sched, err := New(Params{
		DB:               db,
		Log:              log,
		Clock:            fake,
		BillingSvc:       bills,
		ReadingSvc:       readings,
		PenaltySvc:       penalties,
		DisconnectionSvc: notices,
	})
	require.NoError(t, err)

	_, err = rates.Create(context.Background(), ratedomain.CreateRateRequest{
		Classification: subscriberdomain.ClassificationPrivate,
		MinimumCharge:  dec("150.00"),
		MinimumVolume:  dec("10.00"),
		RatePerCubicM:  dec("15.50"),
		EffectiveDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	return &testEnv{sched: sched, db: db, node: node, clock: fake}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *testEnv) newSubscriber(t *testing.T, class subscriberdomain.Classification) subscriberdomain.Subscriber {
	t.Helper()

	sub := subscriberdomain.Subscriber{
		ID:             e.node.Generate(),
		AccountNumber:  "ACC-" + e.node.Generate().String(),
		LastName:       "Cruz",
		FirstName:      "Maria",
		Classification: class,
		Status:         subscriberdomain.StatusActive,
		MeterNumber:    "MTR-" + e.node.Generate().String(),
		ConnectionDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		MonthlyMinimum: dec("150.00"),
	}
	require.NoError(t, e.db.Create(&sub).Error)
	return sub
}

func (e *testEnv) newReading(t *testing.T, subID snowflake.ID, month time.Time) readingdomain.MeterReading {
	t.Helper()

	reading := readingdomain.MeterReading{
		ID:              e.node.Generate(),
		SubscriberID:    subID,
		BillingMonth:    month,
		ReadingDate:     month.AddDate(0, 0, 2),
		PreviousReading: dec("100.00"),
		CurrentReading:  dec("115.00"),
	}
	require.NoError(t, e.db.Create(&reading).Error)
	return reading
}

func TestRunBillingMonth_GeneratesForAllReadings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		sub := env.newSubscriber(t, subscriberdomain.ClassificationPrivate)
		env.newReading(t, sub.ID, month)
	}

	result, err := env.sched.RunBillingMonth(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Failures)

	var count int64
	require.NoError(t, env.db.Model(&billingdomain.Bill{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	// A second run finds nothing left to bill.
	again, err := env.sched.RunBillingMonth(ctx, month)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}

func TestRunBillingMonth_PartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	good := env.newSubscriber(t, subscriberdomain.ClassificationPrivate)
	env.newReading(t, good.ID, month)

	// BULK has no tariff seeded, so this subscriber cannot be rated.
	bad := env.newSubscriber(t, subscriberdomain.ClassificationBulk)
	env.newReading(t, bad.ID, month)

	result, err := env.sched.RunBillingMonth(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad.ID, result.Failures[0].SubscriberID)
	assert.ErrorIs(t, result.Failures[0].Err, ratedomain.ErrRateNotFound)

	var count int64
	require.NoError(t, env.db.Model(&billingdomain.Bill{}).
		Where("subscriber_id = ?", good.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPenaltySweep_EscalatesPastDueBills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sub := env.newSubscriber(t, subscriberdomain.ClassificationPrivate)
	env.newReading(t, sub.ID, month)

	_, err := env.sched.RunBillingMonth(ctx, month)
	require.NoError(t, err)

	// Before the due date nothing escalates.
	result, err := env.sched.PenaltySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)

	// Past the due date (month start + 15 days) the bill goes OVERDUE
	// with the 10% surcharge.
	env.clock.Set(time.Date(2026, 3, 17, 6, 0, 0, 0, time.UTC))
	result, err = env.sched.PenaltySweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	var bill billingdomain.Bill
	require.NoError(t, env.db.First(&bill, "subscriber_id = ?", sub.ID).Error)
	assert.Equal(t, billingdomain.BillStatusOverdue, bill.BillStatus)
	assert.True(t, bill.PenaltyAmount.Equal(dec("22.75")), "got %s", bill.PenaltyAmount)
	assert.True(t, bill.Balance.Equal(dec("250.25")), "got %s", bill.Balance)

	// Sweeping again is a no-op: the bill is already OVERDUE.
	result, err = env.sched.PenaltySweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestNoticeSweep_IssuesOncePerBill(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sub := env.newSubscriber(t, subscriberdomain.ClassificationPrivate)
	env.newReading(t, sub.ID, month)

	_, err := env.sched.RunBillingMonth(ctx, month)
	require.NoError(t, err)

	env.clock.Set(time.Date(2026, 3, 17, 6, 0, 0, 0, time.UTC))
	_, err = env.sched.PenaltySweep(ctx)
	require.NoError(t, err)

	// Cutoff is month start + 20 days.
	env.clock.Set(time.Date(2026, 3, 22, 6, 0, 0, 0, time.UTC))
	result, err := env.sched.NoticeSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	var notice disconnectiondomain.DisconnectionNotice
	require.NoError(t, env.db.First(&notice, "subscriber_id = ?", sub.ID).Error)
	assert.Equal(t, disconnectiondomain.NoticeStatusPending, notice.Status)
	assert.True(t, notice.AmountOverdue.Equal(dec("250.25")), "got %s", notice.AmountOverdue)

	// The open notice suppresses a second issuance.
	result, err = env.sched.NoticeSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Empty(t, result.Failures)
}

func TestRunOnce_FullPass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sub := env.newSubscriber(t, subscriberdomain.ClassificationPrivate)
	env.newReading(t, sub.ID, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, env.sched.RunOnce(ctx))

	var count int64
	require.NoError(t, env.db.Model(&billingdomain.Bill{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
