// Package performance holds an agent's sales figures and assigned zone.
package performance

import (
	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// Accepted year range.
const (
	MinYear = 1900
	MaxYear = 2100
)

// ValidateYear checks an optional year. Nil selects the all-time summary.
func ValidateYear(year *int) error {
	if year == nil {
		return nil
	}
	if *year < MinYear || *year > MaxYear {
		return domain.NewValidationError("year", "must be between %d and %d, got %d", MinYear, MaxYear, *year)
	}
	return nil
}

// Summary is an agent's sales, invoiced and collected totals for one year,
// or over the whole history when Year is nil. Found is false when the agent
// has no figures for the period; the totals are then zero.
type Summary struct {
	Year      *int
	Found     bool
	Sales     int64
	Invoiced  decimal.Decimal
	Collected decimal.Decimal
}

// Outstanding is what was invoiced but not yet collected.
func (s Summary) Outstanding() decimal.Decimal {
	return s.Invoiced.Sub(s.Collected)
}

// Zone is an agent's assigned zone. Found is false when the agent is not in
// the agents table; an empty ZoneName means no zone is assigned.
type Zone struct {
	Found     bool
	AgentName string
	ZoneName  string
	City      string
}

// HasZone reports whether a zone is assigned.
func (z Zone) HasZone() bool {
	return z.ZoneName != ""
}
