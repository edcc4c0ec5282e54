package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/waterworks/internal/config"
	"github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.WaterRate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := config.NewBillingConfigHolder()
	require.NoError(t, err)

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		BillingCfg: holder,
	})
	return svc.(*Service), db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func privateRate() domain.CreateRateRequest {
	return domain.CreateRateRequest{
		Classification: subscriberdomain.ClassificationPrivate,
		MinimumCharge:  dec("150.00"),
		MinimumVolume:  dec("10.00"),
		RatePerCubicM:  dec("15.50"),
		EffectiveDate:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputeWaterCharge_AboveMinimum(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, privateRate())
	require.NoError(t, err)

	sub := subscriberdomain.Subscriber{Classification: subscriberdomain.ClassificationPrivate}
	charge, err := svc.ComputeWaterCharge(ctx, sub, dec("15"), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// 150.00 + 5 x 15.50
	assert.True(t, charge.Amount.Equal(dec("227.50")), "got %s", charge.Amount)
	assert.True(t, charge.Discount.IsZero())
}

func TestComputeWaterCharge_SeniorDiscount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, privateRate())
	require.NoError(t, err)

	sub := subscriberdomain.Subscriber{
		Classification: subscriberdomain.ClassificationPrivate,
		IsSenior:       true,
	}
	charge, err := svc.ComputeWaterCharge(ctx, sub, dec("15"), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, charge.Discount.Equal(dec("45.50")), "got %s", charge.Discount)
	assert.True(t, charge.Amount.Equal(dec("182.00")), "got %s", charge.Amount)
}

func TestComputeWaterCharge_MinimumVolumeBoundary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, privateRate())
	require.NoError(t, err)

	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Exactly at the minimum volume there is no excess component.
	sub := subscriberdomain.Subscriber{Classification: subscriberdomain.ClassificationPrivate}
	charge, err := svc.ComputeWaterCharge(ctx, sub, dec("10.00"), asOf)
	require.NoError(t, err)
	assert.True(t, charge.Amount.Equal(dec("150.00")), "got %s", charge.Amount)

	sub.IsSenior = true
	charge, err = svc.ComputeWaterCharge(ctx, sub, dec("10.00"), asOf)
	require.NoError(t, err)
	assert.True(t, charge.Discount.Equal(dec("30.00")), "got %s", charge.Discount)
	assert.True(t, charge.Amount.Equal(dec("120.00")), "got %s", charge.Amount)
}

func TestComputeWaterCharge_NoActiveRate(t *testing.T) {
	svc, _ := newTestService(t)

	sub := subscriberdomain.Subscriber{Classification: subscriberdomain.ClassificationBulk}
	_, err := svc.ComputeWaterCharge(context.Background(), sub, dec("12"), time.Now())
	assert.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestActiveRate_MostRecentWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	old := privateRate()
	old.EffectiveDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(ctx, old)
	require.NoError(t, err)

	newer := privateRate()
	newer.MinimumCharge = dec("175.00")
	newer.EffectiveDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, newer)
	require.NoError(t, err)

	future := privateRate()
	future.MinimumCharge = dec("999.00")
	future.EffectiveDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, future)
	require.NoError(t, err)

	rate, err := svc.ActiveRate(ctx, subscriberdomain.ClassificationPrivate, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rate.MinimumCharge.Equal(dec("175.00")), "got %s", rate.MinimumCharge)
}

func TestCreateRate_SameEffectiveDateRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, privateRate())
	require.NoError(t, err)

	dup := privateRate()
	dup.MinimumCharge = dec("160.00")
	_, err = svc.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrRateConflict)
}
