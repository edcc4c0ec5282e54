// Package scheduler drives the recurring billing jobs: monthly bill
// generation, the overdue penalty sweep and the disconnection notice sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	"github.com/smallbiznis/waterworks/internal/observability/metrics"
	penaltydomain "github.com/smallbiznis/waterworks/internal/penalty/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	BillingSvc       billingdomain.Service
	ReadingSvc       readingdomain.Service
	PenaltySvc       penaltydomain.Service
	DisconnectionSvc disconnectiondomain.Service
	Config           Config `optional:"true"`
}

type Scheduler struct {
	db               *gorm.DB
	log              *zap.Logger
	cfg              Config
	clock            clock.Clock
	billingSvc       billingdomain.Service
	readingSvc       readingdomain.Service
	penaltySvc       penaltydomain.Service
	disconnectionSvc disconnectiondomain.Service
}

// ItemFailure records one subscriber's failure inside a batch run.
type ItemFailure struct {
	SubscriberID snowflake.ID
	BillID       snowflake.ID
	Err          error
}

// BatchResult summarizes a batch run. A run with failures is still a
// success for every other item; failures never roll back processed work.
type BatchResult struct {
	RunID     uuid.UUID
	Processed int
	Failures  []ItemFailure
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.BillingSvc == nil ||
		p.ReadingSvc == nil || p.PenaltySvc == nil || p.DisconnectionSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:               p.DB,
		log:              p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:              p.Config.withDefaults(),
		clock:            p.Clock,
		billingSvc:       p.BillingSvc,
		readingSvc:       p.ReadingSvc,
		penaltySvc:       p.PenaltySvc,
		disconnectionSvc: p.DisconnectionSvc,
	}, nil
}

// RunBillingMonth generates bills for every reading of the month that has no
// bill yet. Failures are collected per subscriber so one account missing a
// tariff does not stall the rest of the batch.
func (s *Scheduler) RunBillingMonth(ctx context.Context, month time.Time) (BatchResult, error) {
	result := BatchResult{RunID: uuid.New()}
	log := s.log.With(
		zap.String("job", "generate_bills"),
		zap.String("run_id", result.RunID.String()),
		zap.String("billing_month", month.Format("2006-01")),
	)
	start := s.clock.Now()
	m := metrics.Engine()
	m.IncBatchRun("generate_bills")
	defer func() {
		m.ObserveBatchDuration("generate_bills", time.Since(start))
	}()

	readings, err := s.readingSvc.ListUnbilled(ctx, month)
	if err != nil {
		return result, fmt.Errorf("list unbilled readings: %w", err)
	}

	for _, reading := range readings {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		_, err := s.billingSvc.GenerateBill(ctx, billingdomain.GenerateBillRequest{
			MeterReadingID: reading.ID.String(),
			GeneratedBy:    "scheduler",
		})
		if err != nil {
			// A bill that appeared since the listing is done work,
			// not a failure.
			if errors.Is(err, billingdomain.ErrDuplicateBill) {
				continue
			}
			m.IncBatchItemError("generate_bills", err)
			result.Failures = append(result.Failures, ItemFailure{
				SubscriberID: reading.SubscriberID,
				Err:          err,
			})
			log.Warn("bill generation failed",
				zap.String("subscriber_id", reading.SubscriberID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Processed++
	}

	log.Info("billing run finished",
		zap.Int("generated", result.Processed),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// PenaltySweep surcharges bills whose due date has passed while they are
// still UNPAID or PARTIAL.
func (s *Scheduler) PenaltySweep(ctx context.Context) (BatchResult, error) {
	result := BatchResult{RunID: uuid.New()}
	now := s.clock.Now()
	m := metrics.Engine()
	m.IncBatchRun("penalty_sweep")
	start := now
	defer func() {
		m.ObserveBatchDuration("penalty_sweep", time.Since(start))
	}()

	// Keyset pagination: a bill that fails assessment keeps its status, so
	// re-querying from the top would fetch the same batch forever.
	var lastID snowflake.ID
	for {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		var bills []billingdomain.Bill
		if err := s.db.WithContext(ctx).
			Where("id > ? AND due_date < ? AND bill_status IN ?", lastID, now, []billingdomain.BillStatus{
				billingdomain.BillStatusUnpaid, billingdomain.BillStatusPartial,
			}).
			Order("id").
			Limit(s.cfg.PenaltyBatchSize).
			Find(&bills).Error; err != nil {
			return result, fmt.Errorf("list overdue bills: %w", err)
		}
		if len(bills) == 0 {
			break
		}

		for _, bill := range bills {
			lastID = bill.ID
			if _, err := s.penaltySvc.ApplyPenalty(ctx, penaltydomain.ApplyPenaltyRequest{
				BillID: bill.ID.String(),
			}); err != nil {
				m.IncBatchItemError("penalty_sweep", err)
				result.Failures = append(result.Failures, ItemFailure{
					SubscriberID: bill.SubscriberID,
					BillID:       bill.ID,
					Err:          err,
				})
				continue
			}
			result.Processed++
		}
	}

	s.log.Info("penalty sweep finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("assessed", result.Processed),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// NoticeSweep opens disconnection notices for OVERDUE bills past their
// cutoff date that have no open notice yet.
func (s *Scheduler) NoticeSweep(ctx context.Context) (BatchResult, error) {
	result := BatchResult{RunID: uuid.New()}
	now := s.clock.Now()
	m := metrics.Engine()
	m.IncBatchRun("notice_sweep")
	start := now
	defer func() {
		m.ObserveBatchDuration("notice_sweep", time.Since(start))
	}()

	var bills []billingdomain.Bill
	if err := s.db.WithContext(ctx).
		Raw(`SELECT b.* FROM bills b
		     LEFT JOIN disconnection_notices n
		       ON n.bill_id = b.id AND n.status IN (?, ?, ?)
		     WHERE b.cutoff_date < ? AND b.bill_status = ? AND n.id IS NULL
		     ORDER BY b.id
		     LIMIT ?`,
			disconnectiondomain.NoticeStatusPending,
			disconnectiondomain.NoticeStatusDelivered,
			disconnectiondomain.NoticeStatusDisconnected,
			now,
			billingdomain.BillStatusOverdue,
			s.cfg.NoticeBatchSize,
		).
		Scan(&bills).Error; err != nil {
		return result, fmt.Errorf("list cutoff bills: %w", err)
	}

	for _, bill := range bills {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if _, err := s.disconnectionSvc.IssueNotice(ctx, disconnectiondomain.IssueNoticeRequest{
			BillID:   bill.ID.String(),
			IssuedBy: "scheduler",
		}); err != nil {
			if errors.Is(err, disconnectiondomain.ErrOpenNoticeExists) {
				continue
			}
			m.IncBatchItemError("notice_sweep", err)
			result.Failures = append(result.Failures, ItemFailure{
				SubscriberID: bill.SubscriberID,
				BillID:       bill.ID,
				Err:          err,
			})
			continue
		}
		result.Processed++
	}

	s.log.Info("notice sweep finished",
		zap.String("run_id", result.RunID.String()),
		zap.Int("issued", result.Processed),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// RunOnce executes one full pass: bills for the current month, then the
// penalty and notice sweeps.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	month := firstOfMonth(s.clock.Now())
	var err error

	if _, runErr := s.RunBillingMonth(ctx, month); runErr != nil {
		err = errors.Join(err, fmt.Errorf("generate_bills: %w", runErr))
	}
	if _, runErr := s.PenaltySweep(ctx); runErr != nil {
		err = errors.Join(err, fmt.Errorf("penalty_sweep: %w", runErr))
	}
	if _, runErr := s.NoticeSweep(ctx); runErr != nil {
		err = errors.Join(err, fmt.Errorf("notice_sweep: %w", runErr))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
