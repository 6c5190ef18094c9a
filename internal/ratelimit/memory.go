package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// idleTTL is how long an agent's bucket survives without traffic.
const idleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is an in-process token bucket per agent.
type Memory struct {
	mu        sync.Mutex
	buckets   map[domain.AgentID]*bucket
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// NewMemory creates a per-agent limiter allowing perMinute requests with
// the given burst (burst <= 0 means perMinute).
func NewMemory(perMinute, burst int) *Memory {
	if burst <= 0 {
		burst = perMinute
	}
	return &Memory{
		buckets: make(map[domain.AgentID]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow takes one token from agent's bucket.
func (m *Memory) Allow(_ context.Context, agent domain.AgentID) error {
	now := m.now()

	m.mu.Lock()
	m.sweep(now)
	b, ok := m.buckets[agent]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[agent] = b
	}
	b.lastSeen = now
	r := b.limiter.ReserveN(now, 1)
	m.mu.Unlock()

	if !r.OK() {
		return rejected(BackendMemory, agent, time.Minute)
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return rejected(BackendMemory, agent, delay)
	}
	return nil
}

// sweep drops idle buckets at most once per idleTTL. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < idleTTL {
		return
	}
	m.lastSweep = now
	for agent, b := range m.buckets {
		if now.Sub(b.lastSeen) >= idleTTL {
			delete(m.buckets, agent)
		}
	}
}

// Len returns the number of tracked agents.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
