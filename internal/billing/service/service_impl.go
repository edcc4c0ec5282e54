package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	"github.com/smallbiznis/waterworks/internal/locking"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	"github.com/smallbiznis/waterworks/internal/observability/metrics"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Locks   *locking.KeyedMutex
	Rates   ratedomain.Service
	Ledger  ledgerdomain.Service
	Billing *config.BillingConfigHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	locks  *locking.KeyedMutex
	rates  ratedomain.Service
	ledger ledgerdomain.Service
	cfg    *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("billing.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		locks:  p.Locks,
		rates:  p.Rates,
		ledger: p.Ledger,
		cfg:    p.Billing,
	}
}

func (s *Service) GenerateBill(ctx context.Context, req domain.GenerateBillRequest) (domain.Bill, error) {
	readingID, err := snowflake.ParseString(req.MeterReadingID)
	if err != nil {
		return domain.Bill{}, domain.ErrInvalidReading
	}

	var reading readingdomain.MeterReading
	if err := s.db.WithContext(ctx).First(&reading, "id = ?", readingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bill{}, domain.ErrInvalidReading
		}
		return domain.Bill{}, fmt.Errorf("load meter reading: %w", err)
	}

	var sub subscriberdomain.Subscriber
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", reading.SubscriberID).Error; err != nil {
		return domain.Bill{}, fmt.Errorf("load subscriber: %w", err)
	}

	dueDate, cutoffDate, err := s.billDates(req, reading.BillingMonth)
	if err != nil {
		return domain.Bill{}, err
	}

	charge, err := s.rates.ComputeWaterCharge(ctx, sub, reading.VolumeConsumed(), reading.BillingMonth)
	if err != nil {
		return domain.Bill{}, err
	}

	unlock := s.locks.Lock(sub.ID.String())
	defer unlock()

	var bill domain.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.Bill{}).
			Where("meter_reading_id = ?", reading.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrDuplicateBill
		}

		arrears, err := outstandingArrears(tx, sub.ID)
		if err != nil {
			return fmt.Errorf("sum arrears: %w", err)
		}

		otherTotal, otherIDs, err := unclaimedCharges(tx, sub.ID)
		if err != nil {
			return fmt.Errorf("collect other charges: %w", err)
		}

		total := charge.Amount.Add(otherTotal).Add(arrears).Round(2)

		now := s.clock.Now()
		bill = domain.Bill{
			ID:             s.genID.Generate(),
			SubscriberID:   sub.ID,
			MeterReadingID: reading.ID,
			BillingMonth:   reading.BillingMonth,
			DueDate:        dueDate,
			CutoffDate:     cutoffDate,
			VolumeConsumed: reading.VolumeConsumed().Round(2),
			BasicCharge:    charge.Amount,
			SeniorDiscount: charge.Discount,
			OtherCharges:   otherTotal,
			PenaltyAmount:  decimal.Zero,
			Arrears:        arrears,
			TotalAmountDue: total,
			AmountPaid:     decimal.Zero,
			Balance:        total,
			BillStatus:     domain.BillStatusUnpaid,
			GeneratedBy:    req.GeneratedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&bill).Error; err != nil {
			return fmt.Errorf("insert bill: %w", err)
		}

		// Claim the attached charges so they never roll into another bill.
		if len(otherIDs) > 0 {
			if err := tx.Model(&chargedomain.OtherCharge{}).
				Where("id IN ?", otherIDs).
				Update("bill_id", bill.ID).Error; err != nil {
				return fmt.Errorf("claim other charges: %w", err)
			}
		}

		_, err = s.ledger.AppendTx(ctx, tx, ledgerdomain.AppendRequest{
			SubscriberID: sub.ID,
			BillID:       &bill.ID,
			EntryDate:    reading.BillingMonth,
			EntryType:    ledgerdomain.EntryTypeBilling,
			Description:  "Water Bill for " + reading.BillingMonth.Format("January 2006"),
			Debit:        total,
		})
		return err
	})
	if err != nil {
		return domain.Bill{}, err
	}

	metrics.Engine().IncBillGenerated()
	s.log.Info("bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("subscriber_id", sub.ID.String()),
		zap.String("billing_month", reading.BillingMonth.Format("2006-01")),
		zap.String("total_amount_due", bill.TotalAmountDue.String()),
	)
	return bill, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Bill, error) {
	billID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Bill{}, domain.ErrInvalidID
	}

	var bill domain.Bill
	if err := s.db.WithContext(ctx).First(&bill, "id = ?", billID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Bill{}, domain.ErrNotFound
		}
		return domain.Bill{}, err
	}
	return bill, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBillRequest) ([]domain.Bill, error) {
	q := s.db.WithContext(ctx).Model(&domain.Bill{})

	if req.SubscriberID != "" {
		subID, err := snowflake.ParseString(req.SubscriberID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		q = q.Where("subscriber_id = ?", subID)
	}
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, domain.ErrInvalidID
		}
		q = q.Where("bill_status = ?", req.Status)
	}

	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var bills []domain.Bill
	if err := q.Order("billing_month DESC, id DESC").Limit(limit).Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

// billDates resolves the due and cutoff dates, defaulting to the configured
// offsets from the start of the billing month.
func (s *Service) billDates(req domain.GenerateBillRequest, billingMonth time.Time) (time.Time, time.Time, error) {
	cfg := s.cfg.Get()

	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = billingMonth.AddDate(0, 0, cfg.DueDays)
	}
	cutoffDate := req.CutoffDate
	if cutoffDate.IsZero() {
		cutoffDate = billingMonth.AddDate(0, 0, cfg.CutoffDays)
	}
	if cutoffDate.Before(dueDate) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDates
	}
	return dueDate.UTC(), cutoffDate.UTC(), nil
}

// outstandingArrears sums the balances of the subscriber's collectible bills.
// Summed row by row in exact decimals; SQL SUM goes through floats on sqlite.
func outstandingArrears(tx *gorm.DB, subscriberID snowflake.ID) (decimal.Decimal, error) {
	var rows []struct {
		Balance decimal.Decimal
	}
	if err := tx.Model(&domain.Bill{}).
		Select("balance").
		Where("subscriber_id = ? AND bill_status IN ?", subscriberID, []domain.BillStatus{
			domain.BillStatusUnpaid, domain.BillStatusPartial, domain.BillStatusOverdue,
		}).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}

	arrears := decimal.Zero
	for _, r := range rows {
		arrears = arrears.Add(r.Balance)
	}
	return arrears.Round(2), nil
}

// unclaimedCharges returns the total and ids of unpaid other charges that no
// bill has claimed yet.
func unclaimedCharges(tx *gorm.DB, subscriberID snowflake.ID) (decimal.Decimal, []snowflake.ID, error) {
	var charges []chargedomain.OtherCharge
	if err := tx.
		Where("subscriber_id = ? AND is_paid = ? AND bill_id IS NULL", subscriberID, false).
		Find(&charges).Error; err != nil {
		return decimal.Zero, nil, err
	}

	total := decimal.Zero
	ids := make([]snowflake.ID, 0, len(charges))
	for _, c := range charges {
		total = total.Add(c.Amount)
		ids = append(ids, c.ID)
	}
	return total.Round(2), ids, nil
}
