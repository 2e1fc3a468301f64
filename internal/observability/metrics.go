package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for assessments_total.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

type Metrics struct {
	registry        *prometheus.Registry
	assessments     *prometheus.CounterVec
	riskScores      prometheus.Histogram
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	framesSkipped   prometheus.Counter
}

// NewMetrics builds collectors on a private registry so that tests and
// multiple routers do not collide on the global one.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assessments_total",
			Help: "Assessment requests by transport mode and outcome.",
		}, []string{"mode", "outcome"}),
		riskScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assessment_risk_score",
			Help:    "Risk scores returned in buffered mode.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Provider requests by kind and HTTP status (0 on transport failure).",
		}, []string{"kind", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upstream_response_seconds",
			Help:    "Time until provider response headers.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"kind"}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upstream_stream_frames_skipped_total",
			Help: "Malformed stream frames dropped while relaying.",
		}),
	}
	m.registry.MustRegister(
		m.assessments,
		m.riskScores,
		m.upstreamCalls,
		m.upstreamLatency,
		m.framesSkipped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Assessment(mode, outcome string) {
	m.assessments.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) RiskScore(score int) {
	m.riskScores.Observe(float64(score))
}

func (m *Metrics) ObserveUpstream(kind string, status int, elapsed time.Duration) {
	m.upstreamCalls.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.upstreamLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) FrameSkipped() {
	m.framesSkipped.Inc()
}
