package db

import (
	"context"
	"database/sql"
	"time"
)

// SQLStore is the relational facade the invoice view is read through.
type SQLStore interface {
	Pinger
	ConnProvider
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnProvider hands out a dedicated connection from a bounded pool.
// Callers must Close the connection on every path to return it.
type ConnProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// CounterStore provides fixed-window counters (Redis INCR + EXPIRE).
type CounterStore interface {
	Pinger
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
