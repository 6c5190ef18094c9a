// Package invoice reads the invoice view. Every statement is scoped to the
// owning agent through db.SelectBuilder.
package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/invoicegate/internal/db"
	"github.com/kailas-cloud/invoicegate/internal/db/postgres"
	"github.com/kailas-cloud/invoicegate/internal/domain"
	dominv "github.com/kailas-cloud/invoicegate/internal/domain/invoice"
)

// DefaultView is the pre-joined invoice view.
const DefaultView = "view_ai_facturas"

// View columns (fixed external contract).
const (
	colID       = "numero_factura"
	colAgent    = "emisor_cif"
	colStatus   = "estado_legible"
	colIssued   = "fecha_emision"
	colDue      = "fecha_vencimiento"
	colAddress  = "emisor_direccion_calle"
	colAmount   = "total"
	colCurrency = "moneda"
)

var selectColumns = []string{
	colID, colAgent, colStatus, colIssued, colDue, colAddress, colAmount, colCurrency,
}

// Operation names used in errors and metrics.
const (
	OpList       = "list invoices"
	OpCandidates = "address candidates"
)

// Repo implements usecase/invoice.Repository.
type Repo struct {
	conns db.ConnProvider
	view  string
}

// New creates an invoice repository over view (DefaultView if empty).
func New(conns db.ConnProvider, view string) *Repo {
	if view == "" {
		view = DefaultView
	}
	return &Repo{conns: conns, view: postgres.QuoteIdentifier(view)}
}

// ListQuery renders the listing statement for agent and f.
func (r *Repo) ListQuery(agent domain.AgentID, f dominv.Filter) (string, []any, error) {
	b := db.NewSelect(r.view, selectColumns...).Scope(colAgent, agent.String())
	if f.Status() != "" {
		b.Where(colStatus+" = ?", string(f.Status()))
	}
	if f.From() != nil {
		b.Where(colIssued+" >= ?::date", f.From().Format(dominv.DateLayout))
	}
	if f.To() != nil {
		b.Where(colIssued+" <= ?::date", f.To().Format(dominv.DateLayout))
	}
	return b.
		OrderBy(colDue+" ASC NULLS LAST", colID+" ASC").
		Limit(f.Limit()).
		Build()
}

// CandidatesQuery renders the statement returning every one of the agent's
// rows that carries a property address, in invoice ID order. It has no row
// cap: the caller scores rows as they stream and keeps only the best.
func (r *Repo) CandidatesQuery(agent domain.AgentID) (string, []any, error) {
	return db.NewSelect(r.view, selectColumns...).
		Scope(colAgent, agent.String()).
		Where(colAddress + " IS NOT NULL").
		Where("btrim(" + colAddress + ") <> ''").
		OrderBy(colID + " ASC").
		Build()
}

// List returns the agent's invoices matching f.
func (r *Repo) List(ctx context.Context, agent domain.AgentID, f dominv.Filter) ([]dominv.Invoice, error) {
	q, args, err := r.ListQuery(agent, f)
	if err != nil {
		return nil, domain.NewDataSourceError(OpList, false, err)
	}
	out := make([]dominv.Invoice, 0)
	if _, err := r.stream(ctx, OpList, q, args, func(inv dominv.Invoice) {
		out = append(out, inv)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Candidates passes each of the agent's invoices that has an address to
// visit as it is read and returns how many were read. On error, rows
// already visited must be discarded.
func (r *Repo) Candidates(ctx context.Context, agent domain.AgentID, visit func(dominv.Invoice)) (int, error) {
	q, args, err := r.CandidatesQuery(agent)
	if err != nil {
		return 0, domain.NewDataSourceError(OpCandidates, false, err)
	}
	return r.stream(ctx, OpCandidates, q, args, visit)
}

// stream runs one read on a dedicated connection that is released on every path.
func (r *Repo) stream(ctx context.Context, op, q string, args []any, visit func(dominv.Invoice)) (n int, err error) {
	defer func() {
		if err != nil {
			err = classify(ctx, op, err)
		}
	}()

	conn, err := r.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		inv, scanErr := scanInvoice(rows)
		if scanErr != nil {
			return n, &db.Error{Op: db.OpScan, Err: fmt.Errorf("%w: %w", db.ErrSchemaMismatch, scanErr)}
		}
		visit(inv)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, &db.Error{Op: db.OpRows, Err: err}
	}
	return n, nil
}

func scanInvoice(rows *sql.Rows) (dominv.Invoice, error) {
	var (
		inv      dominv.Invoice
		agent    string
		status   string
		due      sql.NullTime
		address  sql.NullString
		amount   decimal.Decimal
		currency sql.NullString
	)
	if err := rows.Scan(&inv.ID, &agent, &status, &inv.IssueDate, &due, &address, &amount, &currency); err != nil {
		return dominv.Invoice{}, err
	}
	inv.AgentID = domain.AgentID(agent)
	inv.Status = dominv.Status(status)
	if due.Valid {
		d := due.Time
		inv.DueDate = &d
	}
	inv.PropertyAddress = address.String
	inv.Amount = amount
	inv.Currency = currency.String
	return inv, nil
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
