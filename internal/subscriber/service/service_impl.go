package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"github.com/smallbiznis/waterworks/pkg/db"
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
		log:   p.Log.Named("subscriber.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSubscriberRequest) (domain.Subscriber, error) {
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	if req.AccountNumber == "" {
		return domain.Subscriber{}, domain.ErrInvalidAccountNumber
	}
	if strings.TrimSpace(req.LastName) == "" || strings.TrimSpace(req.FirstName) == "" {
		return domain.Subscriber{}, domain.ErrInvalidName
	}
	if !req.Classification.Valid() {
		return domain.Subscriber{}, domain.ErrInvalidClass
	}
	req.MeterNumber = strings.TrimSpace(req.MeterNumber)
	if req.MeterNumber == "" {
		return domain.Subscriber{}, domain.ErrInvalidMeterNumber
	}

	now := time.Now().UTC()
	sub := domain.Subscriber{
		ID:             s.genID.Generate(),
		AccountNumber:  req.AccountNumber,
		LastName:       strings.TrimSpace(req.LastName),
		FirstName:      strings.TrimSpace(req.FirstName),
		MiddleName:     strings.TrimSpace(req.MiddleName),
		Address:        req.Address,
		Barangay:       req.Barangay,
		ContactNumber:  req.ContactNumber,
		Email:          strings.TrimSpace(req.Email),
		Classification: req.Classification,
		Status:         domain.StatusActive,
		MeterNumber:    req.MeterNumber,
		MeterSize:      req.MeterSize,
		ServiceAddress: req.ServiceAddress,
		ConnectionDate: now,
		MonthlyMinimum: req.MonthlyMinimum,
		IsSenior:       req.IsSenior,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Subscriber{}, domain.ErrDuplicateAccount
		}
		return domain.Subscriber{}, err
	}

	s.log.Info("subscriber created",
		zap.String("subscriber_id", sub.ID.String()),
		zap.String("account_number", sub.AccountNumber),
	)
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Subscriber, error) {
	subID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.Subscriber{}, domain.ErrInvalidID
	}

	var sub domain.Subscriber
	err = s.db.WithContext(ctx).First(&sub, "id = ?", subID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Subscriber{}, domain.ErrNotFound
		}
		return domain.Subscriber{}, err
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSubscriberRequest) ([]domain.Subscriber, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Subscriber{})
	if req.Classification != "" {
		if !req.Classification.Valid() {
			return nil, domain.ErrInvalidClass
		}
		stmt = stmt.Where("classification = ?", req.Classification)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}

	var subs []domain.Subscriber
	if err := stmt.Order("last_name, first_name").Limit(limit).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
