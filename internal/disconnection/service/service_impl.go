package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/clock"
	"github.com/smallbiznis/waterworks/internal/config"
	"github.com/smallbiznis/waterworks/internal/disconnection/domain"
	"github.com/smallbiznis/waterworks/internal/observability/metrics"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
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
	Billing *config.BillingConfigHolder
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   *config.BillingConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("disconnection.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Billing,
	}
}

func (s *Service) IssueNotice(ctx context.Context, req domain.IssueNoticeRequest) (domain.DisconnectionNotice, error) {
	billID, err := snowflake.ParseString(req.BillID)
	if err != nil {
		return domain.DisconnectionNotice{}, domain.ErrInvalidBill
	}

	cfg := s.cfg.Get()
	penaltyRate := req.PenaltyRatePct
	if penaltyRate.IsZero() {
		penaltyRate = cfg.PenaltyRate()
	}
	reconnectFee := req.ReconnectionFee
	if reconnectFee.IsZero() {
		reconnectFee = cfg.ReconnectFee()
	}

	var notice domain.DisconnectionNotice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill billingdomain.Bill
		if err := tx.First(&bill, "id = ?", billID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrInvalidBill
			}
			return fmt.Errorf("load bill: %w", err)
		}
		if bill.BillStatus != billingdomain.BillStatusOverdue {
			return domain.ErrBillNotOverdue
		}

		var open int64
		if err := tx.Model(&domain.DisconnectionNotice{}).
			Where("bill_id = ? AND status IN ?", bill.ID, []domain.NoticeStatus{
				domain.NoticeStatusPending, domain.NoticeStatusDelivered, domain.NoticeStatusDisconnected,
			}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrOpenNoticeExists
		}

		now := s.clock.Now()
		notice = domain.DisconnectionNotice{
			ID:              s.genID.Generate(),
			SubscriberID:    bill.SubscriberID,
			BillID:          bill.ID,
			NoticeDate:      now,
			AmountOverdue:   bill.Balance,
			PenaltyRatePct:  penaltyRate,
			ReconnectionFee: reconnectFee,
			Status:          domain.NoticeStatusPending,
			IssuedBy:        req.IssuedBy,
			Remarks:         req.Remarks,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Create(&notice).Error
	})
	if err != nil {
		return domain.DisconnectionNotice{}, err
	}

	metrics.Engine().IncNoticeIssued()
	s.log.Info("disconnection notice issued",
		zap.String("notice_id", notice.ID.String()),
		zap.String("subscriber_id", notice.SubscriberID.String()),
		zap.String("bill_id", notice.BillID.String()),
		zap.String("amount_overdue", notice.AmountOverdue.String()),
	)
	return notice, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.DisconnectionNotice, error) {
	noticeID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.DisconnectionNotice{}, domain.ErrInvalidID
	}

	var notice domain.DisconnectionNotice
	if err := s.db.WithContext(ctx).First(&notice, "id = ?", noticeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DisconnectionNotice{}, domain.ErrNotFound
		}
		return domain.DisconnectionNotice{}, err
	}
	return notice, nil
}

func (s *Service) MarkDelivered(ctx context.Context, id string) (domain.DisconnectionNotice, error) {
	return s.transition(ctx, id, domain.NoticeStatusDelivered, nil)
}

func (s *Service) MarkDisconnected(ctx context.Context, id string) (domain.DisconnectionNotice, error) {
	return s.transition(ctx, id, domain.NoticeStatusDisconnected, func(tx *gorm.DB, notice *domain.DisconnectionNotice) error {
		now := s.clock.Now()
		notice.DisconnectedAt = &now
		return tx.Model(&subscriberdomain.Subscriber{}).
			Where("id = ?", notice.SubscriberID).
			Updates(map[string]interface{}{
				"status":     subscriberdomain.StatusDisconnected,
				"updated_at": now,
			}).Error
	})
}

func (s *Service) MarkReconnected(ctx context.Context, id string) (domain.DisconnectionNotice, error) {
	return s.transition(ctx, id, domain.NoticeStatusReconnected, func(tx *gorm.DB, notice *domain.DisconnectionNotice) error {
		now := s.clock.Now()
		notice.ReconnectedAt = &now
		if err := tx.Model(&subscriberdomain.Subscriber{}).
			Where("id = ?", notice.SubscriberID).
			Updates(map[string]interface{}{
				"status":     subscriberdomain.StatusActive,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if !notice.ReconnectionFee.IsPositive() {
			return nil
		}
		// The fee frozen at issuance rides onto the next generated bill.
		fee := chargedomain.OtherCharge{
			ID:           s.genID.Generate(),
			SubscriberID: notice.SubscriberID,
			ChargeType:   chargedomain.ChargeTypeReconnection,
			Description:  "Reconnection fee",
			Amount:       notice.ReconnectionFee,
			ChargeDate:   now,
			AppliedBy:    notice.IssuedBy,
			CreatedAt:    now,
		}
		return tx.Create(&fee).Error
	})
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.DisconnectionNotice, error) {
	return s.transition(ctx, id, domain.NoticeStatusCancelled, nil)
}

// transition moves a notice to next after validating the workflow edge,
// running extra inside the same transaction when provided.
func (s *Service) transition(ctx context.Context, id string, next domain.NoticeStatus, extra func(tx *gorm.DB, notice *domain.DisconnectionNotice) error) (domain.DisconnectionNotice, error) {
	noticeID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.DisconnectionNotice{}, domain.ErrInvalidID
	}

	var notice domain.DisconnectionNotice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&notice, "id = ?", noticeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if !notice.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, notice.Status, next)
		}

		notice.Status = next
		notice.UpdatedAt = s.clock.Now()

		if extra != nil {
			if err := extra(tx, &notice); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"status":     notice.Status,
			"updated_at": notice.UpdatedAt,
		}
		if notice.DisconnectedAt != nil {
			updates["disconnected_at"] = *notice.DisconnectedAt
		}
		if notice.ReconnectedAt != nil {
			updates["reconnected_at"] = *notice.ReconnectedAt
		}
		return tx.Model(&domain.DisconnectionNotice{}).
			Where("id = ?", notice.ID).
			Updates(updates).Error
	})
	if err != nil {
		return domain.DisconnectionNotice{}, err
	}

	s.log.Info("notice transitioned",
		zap.String("notice_id", notice.ID.String()),
		zap.String("status", string(notice.Status)),
	)
	return notice, nil
}
