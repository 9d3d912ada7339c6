package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type metricsMiddleware struct {
	next     ports.ProjectStore
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsMiddleware counts registry operations by outcome and records
// their latency. The collectors are registered with reg when it is not nil.
func NewMetricsMiddleware(reg prometheus.Registerer) Middleware {
	ops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topolab_registry_operations_total",
			Help: "Total number of project registry operations, by outcome",
		},
		[]string{"op", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topolab_registry_operation_duration_seconds",
			Help:    "Duration of project registry operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	if reg != nil {
		reg.MustRegister(ops, duration)
	}
	return func(next ports.ProjectStore) ports.ProjectStore {
		return &metricsMiddleware{next: next, ops: ops, duration: duration}
	}
}

func (m *metricsMiddleware) observe(op string, start time.Time, err error) {
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsMiddleware) Save(ctx context.Context, record domain.ProjectRecord) (err error) {
	defer func(start time.Time) { m.observe("save", start, err) }(time.Now())
	return m.next.Save(ctx, record)
}

func (m *metricsMiddleware) Load(ctx context.Context, projectID string) (rec *domain.ProjectRecord, err error) {
	defer func(start time.Time) { m.observe("load", start, err) }(time.Now())
	return m.next.Load(ctx, projectID)
}

func (m *metricsMiddleware) Delete(ctx context.Context, projectID string) (err error) {
	defer func(start time.Time) { m.observe("delete", start, err) }(time.Now())
	return m.next.Delete(ctx, projectID)
}

func (m *metricsMiddleware) List(ctx context.Context) (records []domain.ProjectRecord, err error) {
	defer func(start time.Time) { m.observe("list", start, err) }(time.Now())
	return m.next.List(ctx)
}
