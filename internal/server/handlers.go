package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	disconnectiondomain "github.com/smallbiznis/waterworks/internal/disconnection/domain"
	readingdomain "github.com/smallbiznis/waterworks/internal/meterreading/domain"
	chargedomain "github.com/smallbiznis/waterworks/internal/othercharge/domain"
	paymentdomain "github.com/smallbiznis/waterworks/internal/payment/domain"
	penaltydomain "github.com/smallbiznis/waterworks/internal/penalty/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
	subscriberdomain "github.com/smallbiznis/waterworks/internal/subscriber/domain"
	"go.uber.org/zap"
)

func (s *Server) CreateSubscriber(c *gin.Context) {
	var req subscriberdomain.CreateSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	sub, err := s.subscriberSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) ListSubscribers(c *gin.Context) {
	req := subscriberdomain.ListSubscriberRequest{
		Classification: subscriberdomain.Classification(c.Query("classification")),
		Status:         subscriberdomain.Status(c.Query("status")),
	}

	subs, err := s.subscriberSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs})
}

func (s *Server) GetSubscriber(c *gin.Context) {
	sub, err := s.subscriberSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) GetSubscriberLedger(c *gin.Context) {
	sub, err := s.subscriberSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.ledgerSvc.List(c.Request.Context(), sub.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	balance, err := s.ledgerSvc.RunningBalance(c.Request.Context(), sub.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":         entries,
		"running_balance": balance,
	})
}

func (s *Server) ListSubscriberCharges(c *gin.Context) {
	charges, err := s.chargeSvc.ListBySubscriber(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

func (s *Server) CreateRate(c *gin.Context) {
	var req ratedomain.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	rate, err := s.rateSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rate)
}

func (s *Server) RecordReading(c *gin.Context) {
	var req readingdomain.RecordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	reading, err := s.readingSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (s *Server) GetReading(c *gin.Context) {
	reading, err := s.readingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (s *Server) CreateOtherCharge(c *gin.Context) {
	var req chargedomain.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	charge, err := s.chargeSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, charge)
}

func (s *Server) GenerateBill(c *gin.Context) {
	var req billingdomain.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	bill, err := s.billingSvc.GenerateBill(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

func (s *Server) ListBills(c *gin.Context) {
	req := billingdomain.ListBillRequest{
		SubscriberID: c.Query("subscriber_id"),
		Status:       billingdomain.BillStatus(c.Query("status")),
	}

	bills, err := s.billingSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bills": bills})
}

func (s *Server) GetBill(c *gin.Context) {
	bill, err := s.billingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (s *Server) ProcessPayment(c *gin.Context) {
	var req paymentdomain.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}
	req.BillID = c.Param("id")

	bill, err := s.paymentSvc.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (s *Server) ApplyPenalty(c *gin.Context) {
	// The body is optional; the configured rate applies when it is absent.
	var req penaltydomain.ApplyPenaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}
	req.BillID = c.Param("id")

	bill, err := s.penaltySvc.ApplyPenalty(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (s *Server) IssueNotice(c *gin.Context) {
	var req disconnectiondomain.IssueNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}
	req.BillID = c.Param("id")

	notice, err := s.disconnectionSvc.IssueNotice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notice)
}

func (s *Server) DeliverNotice(c *gin.Context) {
	notice, err := s.disconnectionSvc.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

func (s *Server) DisconnectNotice(c *gin.Context) {
	notice, err := s.disconnectionSvc.MarkDisconnected(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

func (s *Server) ReconnectNotice(c *gin.Context) {
	notice, err := s.disconnectionSvc.MarkReconnected(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

func (s *Server) CancelNotice(c *gin.Context) {
	notice, err := s.disconnectionSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

type runBillingRequest struct {
	BillingMonth string `json:"billing_month"`
}

func (s *Server) RunBilling(c *gin.Context) {
	var req runBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: err.Error()}})
		return
	}

	month, err := parseBillingMonth(req.BillingMonth)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{Type: "invalid_request", Message: "billing_month must be YYYY-MM"}})
		return
	}

	result, err := s.scheduler.RunBillingMonth(c.Request.Context(), month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	failures := make([]gin.H, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, gin.H{
			"subscriber_id": f.SubscriberID.String(),
			"error":         f.Err.Error(),
		})
	}
	s.log.Info("billing run requested",
		zap.String("run_id", result.RunID.String()),
		zap.String("billing_month", month.Format("2006-01")),
	)
	c.JSON(http.StatusOK, gin.H{
		"run_id":    result.RunID.String(),
		"generated": result.Processed,
		"failures":  failures,
	})
}

func parseBillingMonth(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01", raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
