package performance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	domperf "github.com/kailas-cloud/invoicegate/internal/domain/performance"
	"github.com/kailas-cloud/invoicegate/internal/logger"
	"github.com/kailas-cloud/invoicegate/internal/metrics"
)

// InstrumentedRepository wraps Repository with read metrics and logging.
type InstrumentedRepository struct {
	inner Repository
}

// NewInstrumentedRepository wraps a repository with observability.
func NewInstrumentedRepository(inner Repository) *InstrumentedRepository {
	return &InstrumentedRepository{inner: inner}
}

// Summary delegates to the inner repository and records the read.
func (r *InstrumentedRepository) Summary(ctx context.Context, email string, year *int) (domperf.Summary, error) {
	start := time.Now()
	s, err := r.inner.Summary(ctx, email, year)
	observe(ctx, OpSummary, start, s.Found, err)
	return s, err //nolint:wrapcheck // decorator
}

// Zone delegates to the inner repository and records the read.
func (r *InstrumentedRepository) Zone(ctx context.Context, email string) (domperf.Zone, error) {
	start := time.Now()
	z, err := r.inner.Zone(ctx, email)
	observe(ctx, OpZone, start, z.Found, err)
	return z, err //nolint:wrapcheck // decorator
}

func observe(ctx context.Context, op string, start time.Time, found bool, err error) {
	duration := time.Since(start)

	status := metrics.StatusOK
	switch {
	case domain.IsTimeout(err):
		status = metrics.StatusTimeout
	case err != nil:
		status = metrics.StatusUnavailable
	}
	metrics.QueryDuration.WithLabelValues(op, status).Observe(duration.Seconds())

	if err != nil {
		logger.FromContext(ctx).Error("Performance read failed",
			zap.String("operation", op),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	rows := 0
	if found {
		rows = 1
	}
	metrics.QueryRows.WithLabelValues(op).Observe(float64(rows))
}
