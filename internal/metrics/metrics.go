package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	PracticeLogged  prometheus.Counter
	TrialsReceived  prometheus.Counter
	FeeStatusChange *prometheus.CounterVec
	FeesMarkedLate  prometheus.Counter
	CacheLookups    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "academy",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		PracticeLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "practice_sessions_logged_total",
			Help:      "Practice sessions logged by students.",
		}),
		TrialsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "trial_requests_received_total",
			Help:      "Trial lesson requests submitted through the public form.",
		}),
		FeeStatusChange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "fee_status_changes_total",
			Help:      "Fee status updates by new status.",
		}, []string{"status"}),
		FeesMarkedLate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "fees_marked_overdue_total",
			Help:      "Fees moved to overdue by the daily sweep.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "academy",
			Name:      "cache_lookups_total",
			Help:      "Query cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
	}
	reg.MustRegister(m.requests, m.latency, m.PracticeLogged, m.TrialsReceived,
		m.FeeStatusChange, m.FeesMarkedLate, m.CacheLookups)
	return m
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
