// Package performance reads an agent's yearly sales figures and assigned
// zone. The source tables key agents by e-mail; every statement is scoped
// to one address through db.SelectBuilder.
package performance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/invoicegate/internal/db"
	"github.com/kailas-cloud/invoicegate/internal/db/postgres"
	"github.com/kailas-cloud/invoicegate/internal/domain"
	domperf "github.com/kailas-cloud/invoicegate/internal/domain/performance"
)

// Default source names.
const (
	DefaultView        = "view_agente_performance_anual"
	DefaultAgentsTable = "agentes"
	DefaultZonesTable  = "zonas"
)

// Operation names used in errors and metrics.
const (
	OpSummary = "performance summary"
	OpZone    = "agent zone"
)

// Tables names the sources; empty fields take the defaults.
type Tables struct {
	View   string
	Agents string
	Zones  string
}

// Repo implements usecase/performance.Repository.
type Repo struct {
	conns  db.ConnProvider
	view   string
	agents string
	zones  string
}

// New creates a performance repository.
func New(conns db.ConnProvider, t Tables) *Repo {
	if t.View == "" {
		t.View = DefaultView
	}
	if t.Agents == "" {
		t.Agents = DefaultAgentsTable
	}
	if t.Zones == "" {
		t.Zones = DefaultZonesTable
	}
	return &Repo{
		conns:  conns,
		view:   postgres.QuoteIdentifier(t.View),
		agents: postgres.QuoteIdentifier(t.Agents),
		zones:  postgres.QuoteIdentifier(t.Zones),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// YearQuery renders the one-year figures of email.
func (r *Repo) YearQuery(email string, year int) (string, []any, error) {
	return db.NewSelect(r.view,
		"COALESCE(ventas, 0)", "COALESCE(facturado, 0)", "COALESCE(cobrado, 0)").
		Scope("LOWER(correo)", normalizeEmail(email)).
		Where("anyo = ?", year).
		Limit(1).
		Build()
}

// TotalQuery renders the all-time sums of email. The row count tells an
// agent with zero figures apart from one with none.
func (r *Repo) TotalQuery(email string) (string, []any, error) {
	return db.NewSelect(r.view,
		"COUNT(*)", "COALESCE(SUM(ventas), 0)", "COALESCE(SUM(facturado), 0)", "COALESCE(SUM(cobrado), 0)").
		Scope("LOWER(correo)", normalizeEmail(email)).
		Build()
}

// ZoneQuery renders the agent and zone lookup of email.
func (r *Repo) ZoneQuery(email string) (string, []any, error) {
	from := fmt.Sprintf("%s a LEFT JOIN %s z ON z.id = a.zona_id", r.agents, r.zones)
	return db.NewSelect(from, "a.nombre", "z.nombre", "z.ciudad").
		Scope("LOWER(a.correo)", normalizeEmail(email)).
		Limit(1).
		Build()
}

// Summary returns the figures of email for year, or all time when year is nil.
func (r *Repo) Summary(ctx context.Context, email string, year *int) (domperf.Summary, error) {
	if year != nil {
		return r.yearSummary(ctx, email, *year)
	}
	return r.totalSummary(ctx, email)
}

func (r *Repo) yearSummary(ctx context.Context, email string, year int) (domperf.Summary, error) {
	q, args, err := r.YearQuery(email, year)
	if err != nil {
		return domperf.Summary{}, domain.NewDataSourceError(OpSummary, false, err)
	}
	s := domperf.Summary{Year: &year}
	err = r.queryRow(ctx, q, args, &s.Sales, &s.Invoiced, &s.Collected)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domperf.Summary{Year: &year}, nil
	case err != nil:
		return domperf.Summary{}, classify(ctx, OpSummary, err)
	}
	s.Found = true
	return s, nil
}

func (r *Repo) totalSummary(ctx context.Context, email string) (domperf.Summary, error) {
	q, args, err := r.TotalQuery(email)
	if err != nil {
		return domperf.Summary{}, domain.NewDataSourceError(OpSummary, false, err)
	}
	var (
		s     domperf.Summary
		years int64
	)
	if err := r.queryRow(ctx, q, args, &years, &s.Sales, &s.Invoiced, &s.Collected); err != nil {
		return domperf.Summary{}, classify(ctx, OpSummary, err)
	}
	if years == 0 {
		return domperf.Summary{}, nil
	}
	s.Found = true
	return s, nil
}

// Zone returns the agent and zone registered for email.
func (r *Repo) Zone(ctx context.Context, email string) (domperf.Zone, error) {
	q, args, err := r.ZoneQuery(email)
	if err != nil {
		return domperf.Zone{}, domain.NewDataSourceError(OpZone, false, err)
	}
	var name, zone, city sql.NullString
	err = r.queryRow(ctx, q, args, &name, &zone, &city)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domperf.Zone{}, nil
	case err != nil:
		return domperf.Zone{}, classify(ctx, OpZone, err)
	}
	return domperf.Zone{
		Found:     true,
		AgentName: name.String,
		ZoneName:  strings.TrimSpace(zone.String),
		City:      city.String,
	}, nil
}

// queryRow reads one row on a dedicated connection released on every path.
// sql.ErrNoRows is returned unwrapped.
func (r *Repo) queryRow(ctx context.Context, q string, args []any, dest ...any) error {
	conn, err := r.conns.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if err := conn.QueryRowContext(ctx, q, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}

// classify maps any read failure to a DataSourceError.
func classify(ctx context.Context, op string, err error) error {
	var dsErr *domain.DataSourceError
	if errors.As(err, &dsErr) {
		return err
	}
	timeout := errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
	if postgres.IsSchemaError(err) {
		err = fmt.Errorf("%w: %w", db.ErrSchemaMismatch, err)
	}
	return domain.NewDataSourceError(op, timeout, err)
}
