package domain

import (
	"strings"
	"unicode"
)

// MaxAgentIDLength bounds the opaque caller identifier.
const MaxAgentIDLength = 64

// AgentID is the owning-agent identifier (CIF) that scopes every invoice row.
// The zero value is not a valid identity.
type AgentID string

// NewAgentID validates an opaque caller identifier.
func NewAgentID(raw string) (AgentID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", NewValidationError("caller_id", "is required")
	}
	if len(id) > MaxAgentIDLength {
		return "", NewValidationError("caller_id", "too long (max %d bytes)", MaxAgentIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return "", NewValidationError("caller_id", "contains control characters")
		}
	}
	return AgentID(id), nil
}

// String returns the identifier as stored in the view.
func (a AgentID) String() string { return string(a) }
