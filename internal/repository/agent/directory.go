// Package agent maps agent e-mail addresses to CIFs, and back, through the
// agent contact directory.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kailas-cloud/invoicegate/internal/db"
	"github.com/kailas-cloud/invoicegate/internal/db/postgres"
	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// DefaultTable is the agent contact directory.
const DefaultTable = "contacto_agentes"

// Operation names used in errors.
const (
	OpLookup      = "agent lookup"
	OpLookupEmail = "agent email lookup"
)

// Directory looks agents up by e-mail.
type Directory struct {
	conns db.ConnProvider
	table string
}

// NewDirectory creates a directory over table (DefaultTable if empty).
func NewDirectory(conns db.ConnProvider, table string) *Directory {
	if table == "" {
		table = DefaultTable
	}
	return &Directory{conns: conns, table: postgres.QuoteIdentifier(table)}
}

// LookupQuery renders the case-insensitive e-mail lookup.
func (d *Directory) LookupQuery(email string) (string, []any, error) {
	return db.NewSelect(d.table, "cif").
		Scope("LOWER(email)", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Build()
}

// LookupByEmail returns the CIF registered for email.
// Unknown addresses return db.ErrNotFound.
func (d *Directory) LookupByEmail(ctx context.Context, email string) (domain.AgentID, error) {
	q, args, err := d.LookupQuery(email)
	if err != nil {
		return "", domain.NewDataSourceError(OpLookup, false, err)
	}

	conn, err := d.conns.Conn(ctx)
	if err != nil {
		return "", wrap(ctx, err)
	}
	defer func() { _ = conn.Close() }()

	var cif string
	err = conn.QueryRowContext(ctx, q, args...).Scan(&cif)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", db.ErrNotFound
	case err != nil:
		return "", wrap(ctx, &db.Error{Op: db.OpQuery, Err: err})
	}

	id, err := domain.NewAgentID(cif)
	if err != nil {
		return "", domain.NewDataSourceError(OpLookup, false, err)
	}
	return id, nil
}

// EmailQuery renders the reverse lookup of an agent's e-mail.
func (d *Directory) EmailQuery(agent domain.AgentID) (string, []any, error) {
	return db.NewSelect(d.table, "email").
		Scope("cif", agent.String()).
		Where("email IS NOT NULL").
		Limit(1).
		Build()
}

// LookupEmail returns the e-mail registered for agent, lower-cased.
// Agents without an address return db.ErrNotFound.
func (d *Directory) LookupEmail(ctx context.Context, agent domain.AgentID) (string, error) {
	q, args, err := d.EmailQuery(agent)
	if err != nil {
		return "", domain.NewDataSourceError(OpLookupEmail, false, err)
	}

	conn, err := d.conns.Conn(ctx)
	if err != nil {
		return "", wrapOp(ctx, OpLookupEmail, err)
	}
	defer func() { _ = conn.Close() }()

	var email string
	err = conn.QueryRowContext(ctx, q, args...).Scan(&email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", db.ErrNotFound
	case err != nil:
		return "", wrapOp(ctx, OpLookupEmail, &db.Error{Op: db.OpQuery, Err: err})
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", db.ErrNotFound
	}
	return email, nil
}

func wrap(ctx context.Context, err error) error {
	return wrapOp(ctx, OpLookup, err)
}

func wrapOp(ctx context.Context, op string, err error) error {
	return domain.NewDataSourceError(op, errors.Is(ctx.Err(), context.DeadlineExceeded), err)
}
