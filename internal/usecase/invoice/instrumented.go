package invoice

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	dominv "github.com/kailas-cloud/invoicegate/internal/domain/invoice"
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

// List delegates to the inner repository and records the read.
func (r *InstrumentedRepository) List(
	ctx context.Context, agent domain.AgentID, f dominv.Filter,
) ([]dominv.Invoice, error) {
	start := time.Now()
	rows, err := r.inner.List(ctx, agent, f)
	observe(ctx, OpList, agent, start, len(rows), err)
	return rows, err //nolint:wrapcheck // decorator
}

// Candidates delegates to the inner repository and records the read.
func (r *InstrumentedRepository) Candidates(
	ctx context.Context, agent domain.AgentID, visit func(dominv.Invoice),
) (int, error) {
	start := time.Now()
	n, err := r.inner.Candidates(ctx, agent, visit)
	observe(ctx, OpSearch, agent, start, n, err)
	return n, err //nolint:wrapcheck // decorator
}

func observe(ctx context.Context, op string, agent domain.AgentID, start time.Time, n int, err error) {
	duration := time.Since(start)
	log := logger.FromContext(ctx)

	status := metrics.StatusOK
	switch {
	case domain.IsTimeout(err):
		status = metrics.StatusTimeout
	case err != nil:
		status = metrics.StatusUnavailable
	}
	metrics.QueryDuration.WithLabelValues(op, status).Observe(duration.Seconds())

	if err != nil {
		log.Error("Invoice view read failed",
			zap.String("operation", op),
			zap.String("agent", agent.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	metrics.QueryRows.WithLabelValues(op).Observe(float64(n))
	log.Debug("Invoice view read completed",
		zap.String("operation", op),
		zap.String("agent", agent.String()),
		zap.Duration("duration", duration),
		zap.Int("rows", n),
	)
}
