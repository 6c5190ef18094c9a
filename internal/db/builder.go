package db

import (
	"errors"
	"strconv"
	"strings"
)

// Builder errors.
var (
	ErrUnscoped      = errors.New("db: select has no scope predicate")
	ErrScopeConflict = errors.New("db: scope predicate set more than once")
)

// SelectBuilder is a fluent builder for scoped, parameterized SELECTs.
// The scope predicate is always rendered first as "<column> = $1" and
// every other predicate is ANDed to it, so no condition can widen it.
type SelectBuilder struct {
	from     string
	columns  []string
	scopeCol string
	scopeArg any
	scopes   int
	conds    []string
	args     []any
	orderBy  []string
	limit    int
}

// NewSelect starts a SELECT over from. from and columns must be trusted
// identifiers; values only ever travel as bind parameters.
func NewSelect(from string, columns ...string) *SelectBuilder {
	return &SelectBuilder{from: from, columns: columns}
}

// Scope sets the mandatory equality predicate bound to $1.
func (b *SelectBuilder) Scope(column string, value any) *SelectBuilder {
	b.scopeCol = column
	b.scopeArg = value
	b.scopes++
	return b
}

// Where ANDs a predicate. Each "?" in expr is replaced by the next
// positional parameter, consuming values in order.
func (b *SelectBuilder) Where(expr string, values ...any) *SelectBuilder {
	var sb strings.Builder
	next := 0
	for _, r := range expr {
		if r == '?' && next < len(values) {
			b.args = append(b.args, values[next])
			next++
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(len(b.args) + 1))
			continue
		}
		sb.WriteRune(r)
	}
	b.conds = append(b.conds, sb.String())
	return b
}

// OrderBy appends ordering terms.
func (b *SelectBuilder) OrderBy(terms ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, terms...)
	return b
}

// Limit sets the row cap (bound as the last parameter). n <= 0 means no LIMIT.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// Build renders the statement and its arguments ($1 is always the scope value).
func (b *SelectBuilder) Build() (string, []any, error) {
	if b.scopes == 0 || b.scopeCol == "" {
		return "", nil, ErrUnscoped
	}
	if b.scopes > 1 {
		return "", nil, ErrScopeConflict
	}

	args := make([]any, 0, len(b.args)+2)
	args = append(args, b.scopeArg)
	args = append(args, b.args...)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.scopeCol)
	sb.WriteString(" = $1")
	for _, c := range b.conds {
		sb.WriteString(" AND ")
		sb.WriteString(c)
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		args = append(args, b.limit)
		sb.WriteString(" LIMIT $")
		sb.WriteString(strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}
