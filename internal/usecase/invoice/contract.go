package invoice

import (
	"context"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	dominv "github.com/kailas-cloud/invoicegate/internal/domain/invoice"
)

// Repository defines the read contract over the invoice view.
// Implementations must scope every read to agent and return only
// *domain.DataSourceError on failure.
type Repository interface {
	List(ctx context.Context, agent domain.AgentID, f dominv.Filter) ([]dominv.Invoice, error)
	// Candidates streams every one of agent's invoices that carries a
	// property address to visit and returns how many were read.
	Candidates(ctx context.Context, agent domain.AgentID, visit func(dominv.Invoice)) (int, error)
}
