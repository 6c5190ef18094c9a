package invoice

import (
	"time"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// Listing limits.
const (
	MaxListRows = 500
)

// Filter is a validated listing filter. The owning-agent scope is not part
// of the filter: it is always added by the repository.
type Filter struct {
	status Status
	from   *time.Time
	to     *time.Time
	limit  int
}

// NewFilter validates raw listing parameters. Issue-date bounds are
// inclusive and either may be omitted. limit <= 0 means MaxListRows;
// larger values are clamped to MaxListRows.
func NewFilter(status, dateFrom, dateTo string, limit int) (Filter, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return Filter{}, err
	}
	from, err := ParseDate("date_from", dateFrom)
	if err != nil {
		return Filter{}, err
	}
	to, err := ParseDate("date_to", dateTo)
	if err != nil {
		return Filter{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return Filter{}, domain.NewValidationError("date_from", "must not be after date_to")
	}
	if limit <= 0 || limit > MaxListRows {
		limit = MaxListRows
	}
	return Filter{status: st, from: from, to: to, limit: limit}, nil
}

// Status returns the status restriction ("" = any).
func (f Filter) Status() Status { return f.status }

// From returns the inclusive lower issue-date bound, nil if open.
func (f Filter) From() *time.Time { return f.from }

// To returns the inclusive upper issue-date bound, nil if open.
func (f Filter) To() *time.Time { return f.to }

// Limit returns the row cap.
func (f Filter) Limit() int {
	if f.limit <= 0 {
		return MaxListRows
	}
	return f.limit
}

// IsEmpty reports whether the filter restricts nothing but the row cap.
func (f Filter) IsEmpty() bool {
	return f.status == "" && f.from == nil && f.to == nil
}
