package compute

import (
	"time"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared by all compute proxies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg (if not nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topolab_compute_requests_total",
				Help: "Total number of requests sent to compute agents, by outcome",
			},
			[]string{"compute", "method", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "topolab_compute_request_duration_seconds",
				Help:    "Duration of requests sent to compute agents",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"compute", "method"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// observe is nil-safe so proxies without metrics skip recording.
func (m *Metrics) observe(computeID, method string, kind domain.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if kind != domain.KindUnknown {
		outcome = kind.String()
	}
	m.requests.WithLabelValues(computeID, method, outcome).Inc()
	m.duration.WithLabelValues(computeID, method).Observe(elapsed.Seconds())
}

// Requests exposes the request counter, labelled by compute, method and outcome.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}
