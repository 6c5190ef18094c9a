// Package invoice implements the two read operations over the invoice view:
// filtered listing and fuzzy address search. Both are scoped to the caller.
package invoice

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	dominv "github.com/kailas-cloud/invoicegate/internal/domain/invoice"
	"github.com/kailas-cloud/invoicegate/internal/domain/search/request"
	"github.com/kailas-cloud/invoicegate/internal/domain/search/result"
	"github.com/kailas-cloud/invoicegate/internal/domain/search/trigram"
	"github.com/kailas-cloud/invoicegate/internal/format"
	"github.com/kailas-cloud/invoicegate/internal/logger"
)

// DefaultQueryTimeout applies when Config leaves QueryTimeout zero.
const DefaultQueryTimeout = 5 * time.Second

// Operation names.
const (
	OpList   = "list invoices"
	OpSearch = "search by address"
)

// Config tunes the service.
type Config struct {
	// QueryTimeout bounds each data source read.
	QueryTimeout time.Duration
	// DefaultLimit applies when a listing names no limit. Zero means the system maximum.
	DefaultLimit int
}

// ListQuery carries raw listing parameters.
type ListQuery struct {
	Status   string
	DateFrom string
	DateTo   string
	Limit    int
}

// SearchQuery carries raw address search parameters. Zero MaxResults and
// nil MinScore select the defaults.
type SearchQuery struct {
	Query      string
	MaxResults int
	MinScore   *float64
}

// Service answers invoice queries on behalf of one caller at a time.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	repo Repository
	cfg  Config
}

// New creates an invoice service.
func New(repo Repository, cfg Config) *Service {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	return &Service{repo: repo, cfg: cfg}
}

// List returns the caller's invoices matching q, ordered by due date then
// invoice ID. Input is validated before the data source is touched.
func (s *Service) List(ctx context.Context, callerID string, q ListQuery) (format.ListingResult, error) {
	agent, err := domain.NewAgentID(callerID)
	if err != nil {
		return format.ListingResult{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	f, err := dominv.NewFilter(q.Status, q.DateFrom, q.DateTo, limit)
	if err != nil {
		return format.ListingResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.repo.List(ctx, agent, f)
	if err != nil {
		return format.ListingResult{}, asDataSourceError(ctx, OpList, err)
	}

	return format.Listing(ownRows(ctx, agent, rows), f), nil
}

// SearchByAddress ranks the caller's invoices by trigram similarity of their
// property address to q.Query and returns the best matches above the floor.
func (s *Service) SearchByAddress(ctx context.Context, callerID string, q SearchQuery) (format.MatchResult, error) {
	agent, err := domain.NewAgentID(callerID)
	if err != nil {
		return format.MatchResult{}, err
	}
	req, err := request.New(q.Query, q.MaxResults, q.MinScore)
	if err != nil {
		return format.MatchResult{}, err
	}
	query := trigram.NewQuery(req.Query())
	if query.IsEmpty() {
		return format.MatchResult{}, domain.NewValidationError("query", "must contain letters or digits")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	// Every candidate is scored as it streams; only the best MaxResults stay in memory.
	top := result.NewTop(req.MinScore(), req.MaxResults())
	foreign := 0
	if _, err := s.repo.Candidates(ctx, agent, func(inv dominv.Invoice) {
		if !inv.OwnedBy(agent) {
			foreign++
			return
		}
		top.Offer(result.New(inv, query.Score(inv.PropertyAddress)))
	}); err != nil {
		return format.MatchResult{}, asDataSourceError(ctx, OpSearch, err)
	}
	if foreign > 0 {
		logger.FromContext(ctx).Error("Foreign rows dropped",
			zap.String("agent", agent.String()),
			zap.Int("rows", foreign),
		)
	}

	return format.Matches(req.Query(), top.Matches()), nil
}

// ownRows drops any row not owned by agent. The repository already scopes
// its SQL; a dropped row means the view contract is broken.
func ownRows(ctx context.Context, agent domain.AgentID, rows []dominv.Invoice) []dominv.Invoice {
	kept := rows[:0]
	for i := range rows {
		if rows[i].OwnedBy(agent) {
			kept = append(kept, rows[i])
			continue
		}
		logger.FromContext(ctx).Error("Foreign row dropped",
			zap.String("agent", agent.String()),
			zap.String("invoice_id", rows[i].ID),
		)
	}
	return kept
}

// asDataSourceError guarantees the data source failure kind and flags an
// expired deadline as a timeout.
func asDataSourceError(ctx context.Context, op string, err error) error {
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)

	var dsErr *domain.DataSourceError
	if errors.As(err, &dsErr) {
		if timedOut && !dsErr.Timeout {
			return domain.NewDataSourceError(dsErr.Op, true, dsErr.Err)
		}
		return err
	}
	return domain.NewDataSourceError(op, timedOut, err)
}
