package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrSchemaMismatch = errors.New("db: schema mismatch")
	ErrNotFound       = errors.New("db: no rows")
)

// Op constants name the failed step for error context.
const (
	OpConn   = "CONN"
	OpQuery  = "QUERY"
	OpScan   = "SCAN"
	OpRows   = "ROWS"
	OpPing   = "PING"
	OpIncr   = "INCR"
	OpExpire = "EXPIRE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
