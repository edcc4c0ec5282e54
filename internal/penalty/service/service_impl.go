package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	"github.com/smallbiznis/waterworks/internal/locking"
	"github.com/smallbiznis/waterworks/internal/observability/metrics"
	"github.com/smallbiznis/waterworks/internal/penalty/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Locks   *locking.KeyedMutex
	Ledger  ledgerdomain.Service
	Billing *config.BillingConfigHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	locks  *locking.KeyedMutex
	ledger ledgerdomain.Service
	cfg    *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("penalty.service"),
		clock:  p.Clock,
		locks:  p.Locks,
		ledger: p.Ledger,
		cfg:    p.Billing,
	}
}

func (s *Service) ApplyPenalty(ctx context.Context, req domain.ApplyPenaltyRequest) (billingdomain.Bill, error) {
	billID, err := snowflake.ParseString(req.BillID)
	if err != nil {
		return billingdomain.Bill{}, domain.ErrInvalidBill
	}

	rate := req.RatePct
	if rate.IsZero() {
		rate = s.cfg.Get().PenaltyRate()
	}
	if rate.IsNegative() {
		return billingdomain.Bill{}, domain.ErrInvalidRate
	}

	var bill billingdomain.Bill
	if err := s.db.WithContext(ctx).First(&bill, "id = ?", billID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billingdomain.Bill{}, domain.ErrInvalidBill
		}
		return billingdomain.Bill{}, fmt.Errorf("load bill: %w", err)
	}

	unlock := s.locks.Lock(bill.SubscriberID.String())
	defer unlock()

	applied := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&bill, "id = ?", billID).Error; err != nil {
			return err
		}

		// Only a bill still awaiting settlement escalates. PAID, OVERDUE
		// and WRITTEN_OFF bills pass through untouched.
		switch bill.BillStatus {
		case billingdomain.BillStatusUnpaid, billingdomain.BillStatusPartial:
		default:
			return nil
		}

		penalty := bill.Balance.Mul(rate).Div(oneHundred).Round(2)
		if penalty.IsZero() {
			return nil
		}

		bill.PenaltyAmount = bill.PenaltyAmount.Add(penalty).Round(2)
		bill.TotalAmountDue = bill.TotalAmountDue.Add(penalty).Round(2)
		bill.Balance = bill.Balance.Add(penalty).Round(2)
		bill.BillStatus = billingdomain.BillStatusOverdue
		bill.UpdatedAt = s.clock.Now()

		if err := tx.Model(&billingdomain.Bill{}).
			Where("id = ?", bill.ID).
			Updates(map[string]interface{}{
				"penalty_amount":   bill.PenaltyAmount,
				"total_amount_due": bill.TotalAmountDue,
				"balance":          bill.Balance,
				"bill_status":      bill.BillStatus,
				"updated_at":       bill.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("update bill: %w", err)
		}

		if _, err := s.ledger.AppendTx(ctx, tx, ledgerdomain.AppendRequest{
			SubscriberID: bill.SubscriberID,
			BillID:       &bill.ID,
			EntryDate:    s.clock.Now(),
			EntryType:    ledgerdomain.EntryTypePenalty,
			Description:  fmt.Sprintf("Late payment penalty (%s%%) for %s bill", rate.String(), bill.BillingMonth.Format("January 2006")),
			Debit:        penalty,
		}); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		return billingdomain.Bill{}, err
	}

	if applied {
		metrics.Engine().IncPenaltyApplied()
		s.log.Info("penalty applied",
			zap.String("bill_id", bill.ID.String()),
			zap.String("subscriber_id", bill.SubscriberID.String()),
			zap.String("rate_pct", rate.String()),
			zap.String("penalty_amount", bill.PenaltyAmount.String()),
		)
	}
	return bill, nil
}
