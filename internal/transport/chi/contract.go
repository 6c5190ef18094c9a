package chi

import (
	"context"

	"github.com/kailas-cloud/invoicegate/internal/format"
	healthuc "github.com/kailas-cloud/invoicegate/internal/usecase/health"
	invoiceuc "github.com/kailas-cloud/invoicegate/internal/usecase/invoice"
)

// InvoiceService is the consumer interface for invoice queries (ISP).
type InvoiceService interface {
	List(ctx context.Context, callerID string, q invoiceuc.ListQuery) (format.ListingResult, error)
	SearchByAddress(ctx context.Context, callerID string, q invoiceuc.SearchQuery) (format.MatchResult, error)
}

// PerformanceService is the consumer interface for performance and zone queries (ISP).
type PerformanceService interface {
	Summary(ctx context.Context, callerID string, year *int) (format.PerformanceResult, error)
	Zone(ctx context.Context, callerID string) (format.ZoneResult, error)
}

// HealthChecker is the consumer interface for health checks (ISP).
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
