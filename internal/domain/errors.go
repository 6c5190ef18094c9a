package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed or out-of-contract caller input.
	ErrValidation = errors.New("validation failed")
	// ErrDataSource signals a connectivity, timeout or schema failure of the invoice view.
	ErrDataSource = errors.New("data source error")
	// ErrUnauthenticated signals that no caller identity could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataSourceError wraps ErrDataSource with the failed operation.
// Timeout is set when the request deadline expired before the read finished.
type DataSourceError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *DataSourceError) Error() string {
	kind := ErrDataSource.Error()
	if e.Timeout {
		kind += " (timeout)"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %s", kind, e.Op, e.Err.Error())
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *DataSourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataSource}
	}
	return []error{ErrDataSource, e.Err}
}

// NewDataSourceError creates a data source error for op.
func NewDataSourceError(op string, timeout bool, err error) error {
	return &DataSourceError{Op: op, Timeout: timeout, Err: err}
}

// IsTimeout reports whether err is a data source timeout.
func IsTimeout(err error) bool {
	var dsErr *DataSourceError
	return errors.As(err, &dsErr) && dsErr.Timeout
}
