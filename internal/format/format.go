// Package format shapes core results into stable, transport-neutral
// structures. The JSON field order is fixed by struct layout and empty
// collections always encode as [] rather than null.
package format

import (
	"fmt"
	"strings"

	dominv "github.com/kailas-cloud/invoicegate/internal/domain/invoice"
	"github.com/kailas-cloud/invoicegate/internal/domain/search/result"
)

// AmountDecimals is the number of fractional digits rendered for amounts.
const AmountDecimals = 2

// Invoice is the rendered form of one invoice row.
type Invoice struct {
	ID              string  `json:"invoice_id"`
	Status          string  `json:"status"`
	IssueDate       string  `json:"issue_date"`
	DueDate         *string `json:"due_date"`
	PropertyAddress string  `json:"property_address"`
	Amount          string  `json:"amount"`
	Currency        string  `json:"currency"`
}

// AppliedFilters echoes the effective listing filter.
type AppliedFilters struct {
	Status   string `json:"status,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Limit    int    `json:"limit"`
}

// ListingResult is the outcome of a listing.
type ListingResult struct {
	Count    int            `json:"count"`
	Invoices []Invoice      `json:"invoices"`
	Filters  AppliedFilters `json:"filters"`
}

// Match is one scored address hit.
type Match struct {
	Invoice
	Score float64 `json:"score"`
}

// MatchResult is the outcome of an address search.
type MatchResult struct {
	Query   string  `json:"query"`
	Found   bool    `json:"found"`
	Count   int     `json:"count"`
	Matches []Match `json:"matches"`
}

// Listing renders rows in the order given.
func Listing(rows []dominv.Invoice, f dominv.Filter) ListingResult {
	out := ListingResult{
		Invoices: make([]Invoice, 0, len(rows)),
		Filters:  Filters(f),
	}
	for i := range rows {
		out.Invoices = append(out.Invoices, renderInvoice(&rows[i]))
	}
	out.Count = len(out.Invoices)
	return out
}

// Filters renders the effective filter.
func Filters(f dominv.Filter) AppliedFilters {
	af := AppliedFilters{Status: string(f.Status()), Limit: f.Limit()}
	if f.From() != nil {
		af.DateFrom = f.From().Format(dominv.DateLayout)
	}
	if f.To() != nil {
		af.DateTo = f.To().Format(dominv.DateLayout)
	}
	return af
}

// Matches renders ranked matches in the order given.
func Matches(query string, matches []result.Match) MatchResult {
	out := MatchResult{
		Query:   query,
		Matches: make([]Match, 0, len(matches)),
	}
	for i := range matches {
		inv := matches[i].Invoice()
		out.Matches = append(out.Matches, Match{
			Invoice: renderInvoice(&inv),
			Score:   matches[i].Score(),
		})
	}
	out.Count = len(out.Matches)
	out.Found = out.Count > 0
	return out
}

func renderInvoice(inv *dominv.Invoice) Invoice {
	v := Invoice{
		ID:              inv.ID,
		Status:          string(inv.Status),
		IssueDate:       inv.IssueDate.Format(dominv.DateLayout),
		PropertyAddress: inv.PropertyAddress,
		Amount:          inv.Amount.StringFixed(AmountDecimals),
		Currency:        inv.Currency,
	}
	if inv.DueDate != nil {
		d := inv.DueDate.Format(dominv.DateLayout)
		v.DueDate = &d
	}
	return v
}

// Text renders a human-readable summary.
func (r ListingResult) Text() string {
	if r.Count == 0 {
		return "No invoices match the applied filters" + r.Filters.describe() + "."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d invoice(s)%s:\n", r.Count, r.Filters.describe())
	for i := range r.Invoices {
		sb.WriteString("- ")
		sb.WriteString(r.Invoices[i].line())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Text renders a human-readable summary.
func (r MatchResult) Text() string {
	if !r.Found {
		return fmt.Sprintf("No invoices match address %q.", r.Query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d invoice(s) matching address %q:\n", r.Count, r.Query)
	for i := range r.Matches {
		fmt.Fprintf(&sb, "- [%.2f] %s\n", r.Matches[i].Score, r.Matches[i].line())
	}
	return sb.String()
}

func (f AppliedFilters) describe() string {
	var parts []string
	if f.Status != "" {
		parts = append(parts, "status "+f.Status)
	}
	if f.DateFrom != "" {
		parts = append(parts, "from "+f.DateFrom)
	}
	if f.DateTo != "" {
		parts = append(parts, "to "+f.DateTo)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func (v *Invoice) line() string {
	due := "no due date"
	if v.DueDate != nil {
		due = "due " + *v.DueDate
	}
	address := v.PropertyAddress
	if address == "" {
		address = "no address"
	}
	return fmt.Sprintf("%s | %s | issued %s | %s | %s %s | %s",
		v.ID, v.Status, v.IssueDate, due, v.Amount, v.Currency, address)
}
