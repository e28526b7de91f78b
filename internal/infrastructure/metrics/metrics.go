// Package metrics exposes Prometheus collectors for the posting service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockpost/internal/core/apperror"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/infrastructure/storage/postgres"
)

const namespace = "stockpost"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	// Posting
	approvals         *prometheus.CounterVec
	approvalDuration  *prometheus.HistogramVec
	approvalRetries   prometheus.Counter
	ledgerRows        prometheus.Counter
	priceHistoryFails prometheus.Counter

	// Background
	outboxDelivered *prometheus.CounterVec
	jobs            *prometheus.CounterVec
}

var _ adjustment.Metrics = (*Metrics)(nil)

// New registers the collectors together with the Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being processed",
	})

	m.approvals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approvals_total",
		Help:      "Approvals by outcome code",
	}, []string{"outcome"})

	m.approvalDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "approval_duration_seconds",
		Help:      "Approval duration including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	m.approvalRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approval_lock_retries_total",
		Help:      "Approval attempts repeated after a lock timeout",
	})

	m.ledgerRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_rows_posted_total",
		Help:      "General ledger rows written by approvals",
	})

	m.priceHistoryFails = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_history_failures_total",
		Help:      "Price history writes that failed and were absorbed",
	})

	m.outboxDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_messages_total",
		Help:      "Outbox deliveries by status",
	}, []string{"status"})

	m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Background jobs by type and status",
	}, []string{"type", "status"})

	registry.MustRegister(
		m.httpRequests, m.httpDuration, m.httpInFlight,
		m.approvals, m.approvalDuration, m.approvalRetries,
		m.ledgerRows, m.priceHistoryFails,
		m.outboxDelivered, m.jobs,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObservePool exports connection pool gauges read from stats at scrape time.
func (m *Metrics) ObservePool(stats func() postgres.PoolStats) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(name, help string, read func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(stats()) })
	}
	m.registry.MustRegister(
		gauge("acquired_conns", "Connections currently in use", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("idle_conns", "Idle connections", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("max_conns", "Configured pool size", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
		gauge("waited_acquires", "Acquires that waited for a free connection", func(s postgres.PoolStats) float64 { return float64(s.EmptyAcquireCount) }),
	)
}

// ApprovalCompleted implements adjustment.Metrics.
func (m *Metrics) ApprovalCompleted(outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(outcome).Inc()
	m.approvalDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if attempts > 1 {
		m.approvalRetries.Add(float64(attempts - 1))
	}
}

// LedgerRowsPosted implements adjustment.Metrics.
func (m *Metrics) LedgerRowsPosted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerRows.Add(float64(n))
}

// PriceHistorySwallowed counts a price history failure absorbed by the fail-open policy.
// Its signature matches pricehistory.RecorderConfig.OnSwallowed.
func (m *Metrics) PriceHistorySwallowed(err error) {
	if m == nil || err == nil {
		return
	}
	m.priceHistoryFails.Inc()
}

// OutboxDelivered counts a relay delivery.
func (m *Metrics) OutboxDelivered(err error) {
	if m == nil {
		return
	}
	m.outboxDelivered.WithLabelValues(status(err)).Inc()
}

// JobCompleted counts a background job run.
func (m *Metrics) JobCompleted(taskType string, err error) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(taskType, status(err)).Inc()
}

func status(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code
	}
	return "failure"
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
