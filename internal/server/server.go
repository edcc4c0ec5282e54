// Package server exposes the billing engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	"github.com/smallbiznis/waterworks/internal/config"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	ledgerdomain "github.com/smallbiznis/waterworks/internal/ledger/domain"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	paymentdomain "github.com/smallbiznis/waterworks/internal/payment/domain"
	penaltydomain "github.com/smallbiznis/waterworks/internal/penalty/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	"github.com/smallbiznis/waterworks/internal/scheduler"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	log              *zap.Logger
	subscriberSvc    subscriberdomain.Service
	rateSvc          ratedomain.Service
	readingSvc       readingdomain.Service
	chargeSvc        chargedomain.Service
	billingSvc       billingdomain.Service
	paymentSvc       paymentdomain.Service
	penaltySvc       penaltydomain.Service
	disconnectionSvc disconnectiondomain.Service
	ledgerSvc        ledgerdomain.Service
	scheduler        *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Log              *zap.Logger
	SubscriberSvc    subscriberdomain.Service
	RateSvc          ratedomain.Service
	ReadingSvc       readingdomain.Service
	ChargeSvc        chargedomain.Service
	BillingSvc       billingdomain.Service
	PaymentSvc       paymentdomain.Service
	PenaltySvc       penaltydomain.Service
	DisconnectionSvc disconnectiondomain.Service
	LedgerSvc        ledgerdomain.Service
	Scheduler        *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	return &Server{
		log:              p.Log.Named("http.server"),
		subscriberSvc:    p.SubscriberSvc,
		rateSvc:          p.RateSvc,
		readingSvc:       p.ReadingSvc,
		chargeSvc:        p.ChargeSvc,
		billingSvc:       p.BillingSvc,
		paymentSvc:       p.PaymentSvc,
		penaltySvc:       p.PenaltySvc,
		disconnectionSvc: p.DisconnectionSvc,
		ledgerSvc:        p.LedgerSvc,
		scheduler:        p.Scheduler,
	}
}

func RegisterRoutes(r *gin.Engine, s *Server) {
	v1 := r.Group("/v1")

	v1.POST("/subscribers", s.CreateSubscriber)
	v1.GET("/subscribers", s.ListSubscribers)
	v1.GET("/subscribers/:id", s.GetSubscriber)
	v1.GET("/subscribers/:id/ledger", s.GetSubscriberLedger)
	v1.GET("/subscribers/:id/charges", s.ListSubscriberCharges)

	v1.POST("/rates", s.CreateRate)

	v1.POST("/readings", s.RecordReading)
	v1.GET("/readings/:id", s.GetReading)

	v1.POST("/charges", s.CreateOtherCharge)

	v1.POST("/bills", s.GenerateBill)
	v1.GET("/bills", s.ListBills)
	v1.GET("/bills/:id", s.GetBill)
	v1.POST("/bills/:id/payments", s.ProcessPayment)
	v1.POST("/bills/:id/penalty", s.ApplyPenalty)
	v1.POST("/bills/:id/notices", s.IssueNotice)

	v1.POST("/notices/:id/deliver", s.DeliverNotice)
	v1.POST("/notices/:id/disconnect", s.DisconnectNotice)
	v1.POST("/notices/:id/reconnect", s.ReconnectNotice)
	v1.POST("/notices/:id/cancel", s.CancelNotice)

	v1.POST("/billing-runs", s.RunBilling)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
