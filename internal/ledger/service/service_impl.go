package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/waterworks/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, req domain.AppendRequest) (domain.LedgerEntry, error) {
	if req.SubscriberID == 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidSubscriber
	}
	if !req.EntryType.Valid() {
		return domain.LedgerEntry{}, domain.ErrInvalidEntryType
	}
	if req.Debit.IsNegative() || req.Credit.IsNegative() {
		return domain.LedgerEntry{}, domain.ErrInvalidAmounts
	}
	if req.Debit.IsZero() == req.Credit.IsZero() {
		return domain.LedgerEntry{}, domain.ErrInvalidAmounts
	}

	before, err := runningBalance(ctx, tx, req.SubscriberID)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("compute balance before posting: %w", err)
	}

	entryDate := req.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}

	debit := req.Debit.Round(2)
	credit := req.Credit.Round(2)

	entry := domain.LedgerEntry{
		ID:             s.genID.Generate(),
		SubscriberID:   req.SubscriberID,
		BillID:         req.BillID,
		EntryDate:      entryDate.UTC(),
		EntryType:      req.EntryType,
		Description:    strings.TrimSpace(req.Description),
		Debit:          debit,
		Credit:         credit,
		RunningBalance: before.Add(debit).Sub(credit).Round(2),
		ReceiptNumber:  req.ReceiptNumber,
		ReceivedBy:     req.ReceivedBy,
		CreatedAt:      time.Now().UTC(),
	}

	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	s.log.Debug("ledger entry posted",
		zap.String("subscriber_id", req.SubscriberID.String()),
		zap.String("entry_type", string(req.EntryType)),
		zap.String("debit", entry.Debit.String()),
		zap.String("credit", entry.Credit.String()),
		zap.String("running_balance", entry.RunningBalance.String()),
	)
	return entry, nil
}

func (s *Service) RunningBalance(ctx context.Context, subscriberID snowflake.ID) (decimal.Decimal, error) {
	if subscriberID == 0 {
		return decimal.Zero, domain.ErrInvalidSubscriber
	}
	return runningBalance(ctx, s.db, subscriberID)
}

func (s *Service) List(ctx context.Context, subscriberID snowflake.ID) ([]domain.LedgerEntry, error) {
	if subscriberID == 0 {
		return nil, domain.ErrInvalidSubscriber
	}
	return listEntries(ctx, s.db, subscriberID)
}

func (s *Service) VerifySnapshots(ctx context.Context, subscriberID snowflake.ID) error {
	if subscriberID == 0 {
		return domain.ErrInvalidSubscriber
	}

	// Snapshots are computed at insertion time, so they replay in creation
	// order; snowflake IDs are time-ordered and stand in for created_at.
	var entries []domain.LedgerEntry
	if err := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("id").
		Find(&entries).Error; err != nil {
		return err
	}

	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Debit).Sub(e.Credit)
		if !balance.Equal(e.RunningBalance) {
			return fmt.Errorf("%w: entry %s recomputed %s cached %s",
				domain.ErrSnapshotMismatch, e.ID, balance, e.RunningBalance)
		}
	}
	return nil
}

// runningBalance sums debits minus credits entry by entry in exact decimals.
// SQL SUM is avoided on purpose: sqlite folds numeric text into floats.
func runningBalance(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID) (decimal.Decimal, error) {
	var rows []struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	if err := tx.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Select("debit", "credit").
		Where("subscriber_id = ?", subscriberID).
		Find(&rows).Error; err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, r := range rows {
		balance = balance.Add(r.Debit).Sub(r.Credit)
	}
	return balance, nil
}

func listEntries(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	if err := tx.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("entry_date, id").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
