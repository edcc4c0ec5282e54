package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/meterreading/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriberdomain.Subscriber{},
		&domain.MeterReading{},
		&billingdomain.Bill{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &testEnv{
		svc:  New(Params{DB: db, Log: zap.NewNop(), GenID: node}),
		db:   db,
		node: node,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *testEnv) newSubscriber(t *testing.T) subscriberdomain.Subscriber {
	t.Helper()

	sub := subscriberdomain.Subscriber{
		ID:             e.node.Generate(),
		AccountNumber:  "ACC-" + e.node.Generate().String(),
		LastName:       "Dela Cruz",
		FirstName:      "Juan",
		Classification: subscriberdomain.ClassificationPrivate,
		Status:         subscriberdomain.StatusActive,
		MeterNumber:    "MTR-" + e.node.Generate().String(),
		ConnectionDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		MonthlyMinimum: dec("150.00"),
	}
	require.NoError(t, e.db.Create(&sub).Error)
	return sub
}

func TestRecord_NormalizesBillingMonth(t *testing.T) {
	env := newTestEnv(t)
	sub := env.newSubscriber(t)

	reading, err := env.svc.Record(context.Background(), domain.RecordReadingRequest{
		SubscriberID:    sub.ID.String(),
		BillingMonth:    time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
		PreviousReading: dec("100.00"),
		CurrentReading:  dec("115.00"),
		ReaderName:      "reader-1",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), reading.BillingMonth)
	assert.True(t, reading.VolumeConsumed().Equal(dec("15.00")), "got %s", reading.VolumeConsumed())
}

func TestRecord_RejectsRegression(t *testing.T) {
	env := newTestEnv(t)
	sub := env.newSubscriber(t)

	_, err := env.svc.Record(context.Background(), domain.RecordReadingRequest{
		SubscriberID:    sub.ID.String(),
		BillingMonth:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PreviousReading: dec("115.00"),
		CurrentReading:  dec("100.00"),
	})
	assert.ErrorIs(t, err, domain.ErrReadingRegression)
}

func TestRecord_RejectsSecondReadingForMonth(t *testing.T) {
	env := newTestEnv(t)
	sub := env.newSubscriber(t)
	ctx := context.Background()

	req := domain.RecordReadingRequest{
		SubscriberID:    sub.ID.String(),
		BillingMonth:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PreviousReading: dec("100.00"),
		CurrentReading:  dec("115.00"),
	}
	_, err := env.svc.Record(ctx, req)
	require.NoError(t, err)

	// Same month, different day: same normalized billing_month.
	req.BillingMonth = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	_, err = env.svc.Record(ctx, req)
	assert.ErrorIs(t, err, domain.ErrDuplicateReading)
}

func TestListUnbilled_SkipsBilledReadings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	billedSub := env.newSubscriber(t)
	openSub := env.newSubscriber(t)

	billed, err := env.svc.Record(ctx, domain.RecordReadingRequest{
		SubscriberID:    billedSub.ID.String(),
		BillingMonth:    month,
		PreviousReading: dec("100.00"),
		CurrentReading:  dec("110.00"),
	})
	require.NoError(t, err)
	open, err := env.svc.Record(ctx, domain.RecordReadingRequest{
		SubscriberID:    openSub.ID.String(),
		BillingMonth:    month,
		PreviousReading: dec("200.00"),
		CurrentReading:  dec("215.00"),
	})
	require.NoError(t, err)

	bill := billingdomain.Bill{
		ID:             env.node.Generate(),
		SubscriberID:   billedSub.ID,
		MeterReadingID: billed.ID,
		BillingMonth:   month,
		DueDate:        month.AddDate(0, 0, 15),
		CutoffDate:     month.AddDate(0, 0, 20),
		VolumeConsumed: dec("10.00"),
		BasicCharge:    dec("150.00"),
		TotalAmountDue: dec("150.00"),
		Balance:        dec("150.00"),
		BillStatus:     billingdomain.BillStatusUnpaid,
	}
	require.NoError(t, env.db.Create(&bill).Error)

	readings, err := env.svc.ListUnbilled(ctx, month)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, open.ID, readings[0].ID)
}
