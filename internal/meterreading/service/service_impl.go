package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/waterworks/internal/meterreading/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
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
		log:   p.Log.Named("meterreading.service"),
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordReadingRequest) (domain.MeterReading, error) {
	subID, err := snowflake.ParseString(req.SubscriberID)
	if err != nil {
		return domain.MeterReading{}, domain.ErrInvalidSubscriber
	}
	if req.BillingMonth.IsZero() {
		return domain.MeterReading{}, domain.ErrInvalidMonth
	}
	if req.CurrentReading.LessThan(req.PreviousReading) {
		return domain.MeterReading{}, domain.ErrReadingRegression
	}

	var sub subscriberdomain.Subscriber
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", subID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.MeterReading{}, domain.ErrInvalidSubscriber
		}
		return domain.MeterReading{}, err
	}

	now := time.Now().UTC()
	readingDate := req.ReadingDate
	if readingDate.IsZero() {
		readingDate = now
	}

	reading := domain.MeterReading{
		ID:              s.genID.Generate(),
		SubscriberID:    subID,
		BillingMonth:    firstOfMonth(req.BillingMonth),
		ReadingDate:     readingDate.UTC(),
		PreviousReading: req.PreviousReading.Round(2),
		CurrentReading:  req.CurrentReading.Round(2),
		ReaderName:      req.ReaderName,
		Remarks:         req.Remarks,
		CreatedAt:       now,
	}

	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.MeterReading{}, domain.ErrDuplicateReading
		}
		return domain.MeterReading{}, err
	}

	s.log.Info("meter reading recorded",
		zap.String("reading_id", reading.ID.String()),
		zap.String("subscriber_id", subID.String()),
		zap.String("billing_month", reading.BillingMonth.Format("2006-01")),
		zap.String("volume", reading.VolumeConsumed().String()),
	)
	return reading, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.MeterReading, error) {
	readingID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.MeterReading{}, domain.ErrInvalidID
	}

	var reading domain.MeterReading
	err = s.db.WithContext(ctx).First(&reading, "id = ?", readingID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.MeterReading{}, domain.ErrNotFound
		}
		return domain.MeterReading{}, err
	}
	return reading, nil
}

func (s *Service) ListUnbilled(ctx context.Context, billingMonth time.Time) ([]domain.MeterReading, error) {
	if billingMonth.IsZero() {
		return nil, domain.ErrInvalidMonth
	}

	var readings []domain.MeterReading
	err := s.db.WithContext(ctx).Raw(
		`SELECT r.*
		 FROM meter_readings r
		 LEFT JOIN bills b ON b.meter_reading_id = r.id
		 WHERE r.billing_month = ? AND b.id IS NULL
		 ORDER BY r.id`,
		firstOfMonth(billingMonth),
	).Scan(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
