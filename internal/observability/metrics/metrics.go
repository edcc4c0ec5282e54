// Package metrics captures billing engine health signals.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	billingdomain "github.com/smallbiznis/waterworks/internal/billing/domain"
	ratedomain "github.com/smallbiznis/waterworks/internal/rate/domain"
)

const (
	ErrorTypeRateNotFound  = "rate_not_found"
	ErrorTypeDuplicateBill = "duplicate_bill"
	ErrorTypeDB            = "db"
	ErrorTypeUnknown       = "unknown"
)

// EngineMetrics holds the prometheus instruments for the billing engine.
type EngineMetrics struct {
	billsGenerated   prometheus.Counter
	paymentsPosted   prometheus.Counter
	penaltiesApplied prometheus.Counter
	noticesIssued    prometheus.Counter
	batchRuns        *prometheus.CounterVec
	batchItemErrors  *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
}

var (
	engineOnce sync.Once
	engine     *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering them on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engine = newEngineMetrics(prometheus.DefaultRegisterer)
	})
	return engine
}

func newEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		billsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterworks_bills_generated_total",
			Help: "Bills created by the billing engine.",
		}),
		paymentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterworks_payments_posted_total",
			Help: "Payments applied to bills.",
		}),
		penaltiesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterworks_penalties_applied_total",
			Help: "Late-payment penalties assessed.",
		}),
		noticesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waterworks_disconnection_notices_total",
			Help: "Disconnection notices issued.",
		}),
		batchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterworks_batch_runs_total",
			Help: "Scheduled batch job executions.",
		}, []string{"job"}),
		batchItemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterworks_batch_item_errors_total",
			Help: "Per-item failures inside batch jobs.",
		}, []string{"job", "error_type"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waterworks_batch_duration_seconds",
			Help:    "Batch job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	for _, c := range []prometheus.Collector{
		m.billsGenerated,
		m.paymentsPosted,
		m.penaltiesApplied,
		m.noticesIssued,
		m.batchRuns,
		m.batchItemErrors,
		m.batchDuration,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return m
}

func (m *EngineMetrics) IncBillGenerated()  { m.billsGenerated.Inc() }
func (m *EngineMetrics) IncPaymentPosted()  { m.paymentsPosted.Inc() }
func (m *EngineMetrics) IncPenaltyApplied() { m.penaltiesApplied.Inc() }
func (m *EngineMetrics) IncNoticeIssued()   { m.noticesIssued.Inc() }

func (m *EngineMetrics) IncBatchRun(job string) {
	m.batchRuns.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncBatchItemError(job string, err error) {
	m.batchItemErrors.WithLabelValues(job, classifyError(err)).Inc()
}

func (m *EngineMetrics) ObserveBatchDuration(job string, d time.Duration) {
	m.batchDuration.WithLabelValues(job).Observe(d.Seconds())
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return ErrorTypeUnknown
	case errors.Is(err, ratedomain.ErrRateNotFound):
		return ErrorTypeRateNotFound
	case errors.Is(err, billingdomain.ErrDuplicateBill):
		return ErrorTypeDuplicateBill
	default:
		return ErrorTypeUnknown
	}
}
