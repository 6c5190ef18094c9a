// Package invoice holds the read model of the invoice view and its listing filter.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// Status is the human-readable invoice state as exposed by the view.
type Status string

// Known statuses (view literals).
const (
	StatusPending   Status = "PENDIENTE"
	StatusPaid      Status = "PAGADA"
	StatusOverdue   Status = "VENCIDA"
	StatusCancelled Status = "ANULADA"
)

// statusAliases maps accepted (lower-cased) spellings to view literals.
var statusAliases = map[string]Status{
	"pendiente": StatusPending,
	"pending":   StatusPending,
	"pagada":    StatusPaid,
	"paid":      StatusPaid,
	"vencida":   StatusOverdue,
	"overdue":   StatusOverdue,
	"anulada":   StatusCancelled,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
}

// ParseStatus resolves a caller-supplied status. Empty and "any" mean no
// status restriction and return ("", nil).
func ParseStatus(raw string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || v == "any" {
		return "", nil
	}
	s, ok := statusAliases[v]
	if !ok {
		return "", domain.NewValidationError("status", "unknown value %q (use pending, paid, overdue, cancelled or any)", raw)
	}
	return s, nil
}

// IsValid reports whether s is one of the known view literals.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// DateLayout is the wire format of issue/due dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date for field. Empty input returns nil.
func ParseDate(field, raw string) (*time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return nil, domain.NewValidationError(field, "invalid date %q, expected YYYY-MM-DD", raw)
	}
	return &t, nil
}

// Invoice is one read-only row of the invoice view.
type Invoice struct {
	ID              string
	AgentID         domain.AgentID
	Status          Status
	IssueDate       time.Time
	DueDate         *time.Time
	PropertyAddress string
	Amount          decimal.Decimal
	Currency        string
}

// OwnedBy reports whether the row belongs to agent.
func (inv *Invoice) OwnedBy(agent domain.AgentID) bool {
	return inv.AgentID == agent
}

// String is used in diagnostics only.
func (inv *Invoice) String() string {
	return fmt.Sprintf("invoice %s (%s, %s %s)", inv.ID, inv.Status, inv.Amount.String(), inv.Currency)
}
