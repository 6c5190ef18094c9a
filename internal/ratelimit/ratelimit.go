// Package ratelimit throttles requests per agent. It guards the invoice
// view from a single agent monopolizing the connection pool.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/metrics"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Limiter admits or rejects one request for agent. Rejections wrap
// domain.ErrRateLimited.
type Limiter interface {
	Allow(ctx context.Context, agent domain.AgentID) error
}

// Config parameterizes a limiter.
type Config struct {
	Backend           string
	RequestsPerMinute int
	Burst             int
	KeyPrefix         string
}

// New builds the limiter selected by cfg.Backend. store is only used by the
// redis backend. A non-positive RequestsPerMinute disables limiting.
func New(cfg Config, store counterStore) (Limiter, error) {
	if cfg.RequestsPerMinute <= 0 {
		return Nop{}, nil
	}
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(cfg.RequestsPerMinute, cfg.Burst), nil
	case BackendRedis:
		if store == nil {
			return nil, fmt.Errorf("redis rate limit backend requires a counter store")
		}
		return NewWindow(store, cfg.RequestsPerMinute, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

// Nop admits everything.
type Nop struct{}

// Allow always admits.
func (Nop) Allow(context.Context, domain.AgentID) error { return nil }

func rejected(backend string, agent domain.AgentID, retryAfter time.Duration) error {
	metrics.RateLimitedTotal.WithLabelValues(backend).Inc()
	return &LimitError{Agent: agent, RetryAfter: retryAfter}
}

// LimitError reports a rejected request with the suggested wait.
type LimitError struct {
	Agent      domain.AgentID
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: agent %s, retry after %s", domain.ErrRateLimited.Error(), e.Agent, e.RetryAfter)
}

func (e *LimitError) Unwrap() error { return domain.ErrRateLimited }
