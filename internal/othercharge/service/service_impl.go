package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waterworks/internal/othercharge/domain"
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
		log:   p.Log.Named("othercharge.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateChargeRequest) (domain.OtherCharge, error) {
	subID, err := snowflake.ParseString(req.SubscriberID)
	if err != nil {
		return domain.OtherCharge{}, domain.ErrInvalidSubscriber
	}
	if !req.ChargeType.Valid() {
		return domain.OtherCharge{}, domain.ErrInvalidChargeType
	}
	if !req.Amount.IsPositive() {
		return domain.OtherCharge{}, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	chargeDate := req.ChargeDate
	if chargeDate.IsZero() {
		chargeDate = now
	}

	charge := domain.OtherCharge{
		ID:           s.genID.Generate(),
		SubscriberID: subID,
		ChargeType:   req.ChargeType,
		Description:  strings.TrimSpace(req.Description),
		Amount:       req.Amount.Round(2),
		ChargeDate:   chargeDate.UTC(),
		AppliedBy:    req.AppliedBy,
		Remarks:      req.Remarks,
		CreatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&charge).Error; err != nil {
		return domain.OtherCharge{}, err
	}

	s.log.Info("other charge created",
		zap.String("charge_id", charge.ID.String()),
		zap.String("subscriber_id", subID.String()),
		zap.String("charge_type", string(charge.ChargeType)),
		zap.String("amount", charge.Amount.String()),
	)
	return charge, nil
}

func (s *Service) ListBySubscriber(ctx context.Context, subscriberID string) ([]domain.OtherCharge, error) {
	subID, err := snowflake.ParseString(subscriberID)
	if err != nil {
		return nil, domain.ErrInvalidSubscriber
	}

	var charges []domain.OtherCharge
	if err := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subID).
		Order("charge_date, id").
		Find(&charges).Error; err != nil {
		return nil, err
	}
	return charges, nil
}
