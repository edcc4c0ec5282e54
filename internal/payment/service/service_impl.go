package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	"github.com/smallbiznis/waterworks/internal/locking"
	"github.com/smallbiznis/waterworks/internal/observability/metrics"
	"github.com/smallbiznis/waterworks/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Locks  *locking.KeyedMutex
	Ledger ledgerdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	locks  *locking.KeyedMutex
	ledger ledgerdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payment.service"),
		clock:  p.Clock,
		locks:  p.Locks,
		ledger: p.Ledger,
	}
}

func (s *Service) ProcessPayment(ctx context.Context, req domain.ProcessPaymentRequest) (billingdomain.Bill, error) {
	billID, err := snowflake.ParseString(req.BillID)
	if err != nil {
		return billingdomain.Bill{}, domain.ErrInvalidBill
	}

	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return billingdomain.Bill{}, domain.ErrInvalidAmount
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

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock so concurrent receipts stack correctly.
		if err := tx.First(&bill, "id = ?", billID).Error; err != nil {
			return err
		}
		if bill.BillStatus == billingdomain.BillStatusWrittenOff {
			return domain.ErrBillClosed
		}

		bill.AmountPaid = bill.AmountPaid.Add(amount).Round(2)
		balance := bill.TotalAmountDue.Sub(bill.AmountPaid)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		bill.Balance = balance.Round(2)
		if bill.Balance.IsZero() {
			bill.BillStatus = billingdomain.BillStatusPaid
		} else {
			bill.BillStatus = billingdomain.BillStatusPartial
		}
		bill.UpdatedAt = s.clock.Now()

		if err := tx.Model(&billingdomain.Bill{}).
			Where("id = ?", bill.ID).
			Updates(map[string]interface{}{
				"amount_paid": bill.AmountPaid,
				"balance":     bill.Balance,
				"bill_status": bill.BillStatus,
				"updated_at":  bill.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("update bill: %w", err)
		}

		_, err := s.ledger.AppendTx(ctx, tx, ledgerdomain.AppendRequest{
			SubscriberID:  bill.SubscriberID,
			BillID:        &bill.ID,
			EntryDate:     s.clock.Now(),
			EntryType:     ledgerdomain.EntryTypePayment,
			Description:   "Payment for " + bill.BillingMonth.Format("January 2006") + " bill",
			Credit:        amount,
			ReceiptNumber: req.ReceiptNumber,
			ReceivedBy:    req.ReceivedBy,
		})
		return err
	})
	if err != nil {
		return billingdomain.Bill{}, err
	}

	metrics.Engine().IncPaymentPosted()
	s.log.Info("payment posted",
		zap.String("bill_id", bill.ID.String()),
		zap.String("subscriber_id", bill.SubscriberID.String()),
		zap.String("amount", amount.String()),
		zap.String("receipt_number", req.ReceiptNumber),
		zap.String("bill_status", string(bill.BillStatus)),
	)
	return bill, nil
}
