package performance

import (
	"context"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	domperf "github.com/kailas-cloud/invoicegate/internal/domain/performance"
)

// Repository reads performance figures and zones keyed by agent e-mail.
// Implementations return only *domain.DataSourceError on failure; missing
// data is reported through the Found flags, never as an error.
type Repository interface {
	Summary(ctx context.Context, email string, year *int) (domperf.Summary, error)
	Zone(ctx context.Context, email string) (domperf.Zone, error)
}

// Directory maps a caller's CIF to its registered e-mail.
// Unknown agents return db.ErrNotFound.
type Directory interface {
	LookupEmail(ctx context.Context, agent domain.AgentID) (string, error)
}
