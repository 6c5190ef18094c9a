package request

import (
	"math"
	"strings"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in bytes.
	MaxQueryLength    = 256
	DefaultMaxResults = 3
	MaxResults        = 20
	DefaultMinScore   = 0.3
)

// Request is a validated address search.
type Request struct {
	query      string
	maxResults int
	minScore   float64
}

// New validates and normalizes address search parameters.
// The query is trimmed and must not be empty. maxResults and minScore are
// clamped rather than rejected: maxResults <= 0 means DefaultMaxResults and
// is capped at MaxResults; a nil or NaN minScore means DefaultMinScore and
// any other value is clamped into [0, 1].
func New(query string, maxResults int, minScore *float64) (Request, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Request{}, domain.NewValidationError("query", "is required")
	}
	if len(q) > MaxQueryLength {
		return Request{}, domain.NewValidationError("query", "too long (max %d bytes)", MaxQueryLength)
	}

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResults {
		maxResults = MaxResults
	}

	score := DefaultMinScore
	if minScore != nil && !math.IsNaN(*minScore) {
		score = math.Min(math.Max(*minScore, 0), 1)
	}

	return Request{query: q, maxResults: maxResults, minScore: score}, nil
}

// Query returns the trimmed search text.
func (r *Request) Query() string { return r.query }

// MaxResults returns the result cap.
func (r *Request) MaxResults() int { return r.maxResults }

// MinScore returns the similarity floor.
func (r *Request) MinScore() float64 { return r.minScore }
