// Package performance answers an agent's questions about its own sales
// figures and assigned zone.
package performance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/db"
	"github.com/kailas-cloud/invoicegate/internal/domain"
	domperf "github.com/kailas-cloud/invoicegate/internal/domain/performance"
	"github.com/kailas-cloud/invoicegate/internal/format"
	"github.com/kailas-cloud/invoicegate/internal/logger"
)

// DefaultQueryTimeout applies when Config leaves QueryTimeout zero.
const DefaultQueryTimeout = 5 * time.Second

// Operation names.
const (
	OpSummary     = "performance summary"
	OpZone        = "agent zone"
	OpLookupEmail = "agent email lookup"
)

// Config tunes the service.
type Config struct {
	// QueryTimeout bounds the directory lookup and the read together.
	QueryTimeout time.Duration
}

// Service is safe for concurrent use.
type Service struct {
	repo    Repository
	dir     Directory
	timeout time.Duration
}

// New creates a performance service.
func New(repo Repository, dir Directory, cfg Config) *Service {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	return &Service{repo: repo, dir: dir, timeout: cfg.QueryTimeout}
}

// Summary returns the caller's figures for year, or over its whole history
// when year is nil.
func (s *Service) Summary(ctx context.Context, callerID string, year *int) (format.PerformanceResult, error) {
	agent, err := domain.NewAgentID(callerID)
	if err != nil {
		return format.PerformanceResult{}, err
	}
	if err := domperf.ValidateYear(year); err != nil {
		return format.PerformanceResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	email, ok, err := s.emailOf(ctx, agent)
	if err != nil {
		return format.PerformanceResult{}, err
	}
	if !ok {
		return format.Performance(domperf.Summary{Year: year}), nil
	}

	sum, err := s.repo.Summary(ctx, email, year)
	if err != nil {
		return format.PerformanceResult{}, asDataSourceError(ctx, OpSummary, err)
	}
	return format.Performance(sum), nil
}

// Zone returns the caller's assigned zone.
func (s *Service) Zone(ctx context.Context, callerID string) (format.ZoneResult, error) {
	agent, err := domain.NewAgentID(callerID)
	if err != nil {
		return format.ZoneResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	email, ok, err := s.emailOf(ctx, agent)
	if err != nil {
		return format.ZoneResult{}, err
	}
	if !ok {
		return format.Zone(domperf.Zone{}), nil
	}

	z, err := s.repo.Zone(ctx, email)
	if err != nil {
		return format.ZoneResult{}, asDataSourceError(ctx, OpZone, err)
	}
	return format.Zone(z), nil
}

// emailOf resolves the key the performance tables use for agent.
func (s *Service) emailOf(ctx context.Context, agent domain.AgentID) (string, bool, error) {
	email, err := s.dir.LookupEmail(ctx, agent)
	switch {
	case errors.Is(err, db.ErrNotFound):
		logger.FromContext(ctx).Warn("Agent has no directory e-mail", zap.String("agent", agent.String()))
		return "", false, nil
	case err != nil:
		return "", false, asDataSourceError(ctx, OpLookupEmail, err)
	}
	return email, true, nil
}

// asDataSourceError guarantees the data source failure kind and flags an
// expired deadline as a timeout.
func asDataSourceError(ctx context.Context, op string, err error) error {
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)

	var dsErr *domain.DataSourceError
	if errors.As(err, &dsErr) {
		if timedOut && !dsErr.Timeout {
			return domain.NewDataSourceError(dsErr.Op, true, dsErr.Err)
		}
		return err
	}
	return domain.NewDataSourceError(op, timedOut, err)
}
