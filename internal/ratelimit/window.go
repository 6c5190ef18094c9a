package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/logger"
)

// DefaultKeyPrefix namespaces window counters.
const DefaultKeyPrefix = "invoicegate:ratelimit:"

// counterStore is the consumer interface for window counters (ISP).
type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Window is a fixed one-minute window counter per agent shared through
// Redis (INCR + EXPIRE NX), so every replica sees the same budget.
// A counter store outage admits the request: throttling never takes the
// service down with it.
type Window struct {
	store  counterStore
	limit  int64
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewWindow creates a shared limiter admitting perMinute requests per agent.
func NewWindow(store counterStore, perMinute int, prefix string) *Window {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Window{
		store:  store,
		limit:  int64(perMinute),
		prefix: prefix,
		window: time.Minute,
		now:    time.Now,
	}
}

// Key returns the counter key for agent at t.
func (w *Window) Key(agent domain.AgentID, t time.Time) string {
	slot := t.Unix() / int64(w.window.Seconds())
	return w.prefix + agent.String() + ":" + strconv.FormatInt(slot, 10)
}

// Allow counts the request and rejects it once the window budget is spent.
func (w *Window) Allow(ctx context.Context, agent domain.AgentID) error {
	now := w.now()
	key := w.Key(agent, now)

	n, err := w.store.Incr(ctx, key)
	if err != nil {
		w.failOpen(ctx, agent, fmt.Errorf("window INCR %s: %w", key, err))
		return nil
	}
	if n == 1 {
		// NX keeps the first request's TTL; later requests never extend the window.
		if err := w.store.Expire(ctx, key, 2*w.window, true); err != nil {
			w.failOpen(ctx, agent, fmt.Errorf("window EXPIRE %s: %w", key, err))
		}
	}
	if n > w.limit {
		return rejected(BackendRedis, agent, w.window-now.Sub(now.Truncate(w.window)))
	}
	return nil
}

func (w *Window) failOpen(ctx context.Context, agent domain.AgentID, err error) {
	logger.FromContext(ctx).Warn("Rate limit store unavailable, admitting request",
		zap.String("agent", agent.String()),
		zap.Error(err),
	)
}
