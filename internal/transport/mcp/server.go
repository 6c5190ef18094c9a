// Package mcp exposes the agent's queries as MCP tools for AI agents, over
// stdio for a single local agent and over SSE for remote ones.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/format"
	"github.com/kailas-cloud/invoicegate/internal/logger"
	"github.com/kailas-cloud/invoicegate/internal/ratelimit"
	invoiceuc "github.com/kailas-cloud/invoicegate/internal/usecase/invoice"
	"github.com/kailas-cloud/invoicegate/internal/version"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "invoicegate"

// Tool names.
const (
	ToolListInvoices    = "list_invoices"
	ToolSearchByAddress = "search_invoices_by_address"
	ToolMyPerformance   = "my_performance"
	ToolMyZone          = "my_zone"
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

// ListInvoicesArgs are the arguments of the list_invoices tool.
type ListInvoicesArgs struct {
	Status   string `json:"status,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SearchByAddressArgs are the arguments of the search_invoices_by_address tool.
type SearchByAddressArgs struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"max_results,omitempty"`
	MinScore   *float64 `json:"min_score,omitempty"`
}

// MyPerformanceArgs are the arguments of the my_performance tool.
type MyPerformanceArgs struct {
	Year *int `json:"year,omitempty"`
}

// MyZoneArgs are the arguments of the my_zone tool.
type MyZoneArgs struct{}

// Tools builds MCP servers bound to one agent each.
type Tools struct {
	invoices    InvoiceService
	performance PerformanceService
	limiter     ratelimit.Limiter
	logger      *zap.Logger
}

// NewTools creates the tool set.
func NewTools(invoices InvoiceService, logger *zap.Logger) *Tools {
	return &Tools{invoices: invoices, limiter: ratelimit.Nop{}, logger: logger}
}

// WithLimiter throttles tool calls per agent, like the HTTP routes.
func (t *Tools) WithLimiter(l ratelimit.Limiter) *Tools {
	if l != nil {
		t.limiter = l
	}
	return t
}

// WithPerformance adds the my_performance and my_zone tools.
func (t *Tools) WithPerformance(p PerformanceService) *Tools {
	t.performance = p
	return t
}

// NewServer builds an MCP server whose tools answer on behalf of agent.
// The agent is fixed for the lifetime of the session; tool arguments never
// carry an identity.
func (t *Tools) NewServer(agent domain.AgentID) *mcpsdk.Server {
	s := mcpsdk.NewServer(ServerName, version.Version, nil)
	s.AddTools(
		mcpsdk.NewServerTool(ToolListInvoices,
			"List your invoices, optionally filtered by status and issue date range. "+
				"Results are ordered by due date, soonest first.",
			t.listInvoices(agent),
			mcpsdk.Input(
				mcpsdk.Property("status", mcpsdk.Description(
					"Invoice status: PENDIENTE, PAGADA, VENCIDA or ANULADA. Omit for any status.")),
				mcpsdk.Property("date_from", mcpsdk.Description("Earliest issue date, YYYY-MM-DD, inclusive.")),
				mcpsdk.Property("date_to", mcpsdk.Description("Latest issue date, YYYY-MM-DD, inclusive.")),
				mcpsdk.Property("limit", mcpsdk.Description("Maximum number of invoices, up to 500.")),
			),
		),
		mcpsdk.NewServerTool(ToolSearchByAddress,
			"Find your invoices whose property address resembles the given text. "+
				"Tolerates typos, abbreviations and missing accents.",
			t.searchByAddress(agent),
			mcpsdk.Input(
				mcpsdk.Property("query", mcpsdk.Description("Address text to look for, e.g. \"Calle Mayor 5\".")),
				mcpsdk.Property("max_results", mcpsdk.Description("Maximum matches to return, 1 to 20. Default 3.")),
				mcpsdk.Property("min_score", mcpsdk.Description("Minimum similarity, 0 to 1. Default 0.3.")),
			),
		),
	)
	if t.performance != nil {
		s.AddTools(
			mcpsdk.NewServerTool(ToolMyPerformance,
				"Your sales count and the amounts invoiced, collected and still outstanding, "+
					"for one year or over your whole history.",
				t.myPerformance(agent),
				mcpsdk.Input(
					mcpsdk.Property("year", mcpsdk.Description("Calendar year, e.g. 2024. Omit for your whole history.")),
				),
			),
			mcpsdk.NewServerTool(ToolMyZone,
				"The zone you are assigned to.",
				t.myZone(agent),
			),
		)
	}
	return s
}

func (t *Tools) listInvoices(agent domain.AgentID) func(
	context.Context, *mcpsdk.ServerSession, *mcpsdk.CallToolParamsFor[ListInvoicesArgs],
) (*mcpsdk.CallToolResultFor[any], error) {
	return func(
		ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ListInvoicesArgs],
	) (*mcpsdk.CallToolResultFor[any], error) {
		args := params.Arguments
		ctx, done := t.begin(ctx, ToolListInvoices, agent)
		if err := t.limiter.Allow(ctx, agent); err != nil {
			done(err)
			return errorResult(err), nil
		}

		res, err := t.invoices.List(ctx, agent.String(), invoiceuc.ListQuery{
			Status:   args.Status,
			DateFrom: args.DateFrom,
			DateTo:   args.DateTo,
			Limit:    args.Limit,
		})
		done(err)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(res.Text(), res), nil
	}
}

func (t *Tools) searchByAddress(agent domain.AgentID) func(
	context.Context, *mcpsdk.ServerSession, *mcpsdk.CallToolParamsFor[SearchByAddressArgs],
) (*mcpsdk.CallToolResultFor[any], error) {
	return func(
		ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[SearchByAddressArgs],
	) (*mcpsdk.CallToolResultFor[any], error) {
		args := params.Arguments
		ctx, done := t.begin(ctx, ToolSearchByAddress, agent)
		if err := t.limiter.Allow(ctx, agent); err != nil {
			done(err)
			return errorResult(err), nil
		}

		res, err := t.invoices.SearchByAddress(ctx, agent.String(), invoiceuc.SearchQuery{
			Query:      args.Query,
			MaxResults: args.MaxResults,
			MinScore:   args.MinScore,
		})
		done(err)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(res.Text(), res), nil
	}
}

func (t *Tools) myPerformance(agent domain.AgentID) func(
	context.Context, *mcpsdk.ServerSession, *mcpsdk.CallToolParamsFor[MyPerformanceArgs],
) (*mcpsdk.CallToolResultFor[any], error) {
	return func(
		ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[MyPerformanceArgs],
	) (*mcpsdk.CallToolResultFor[any], error) {
		ctx, done := t.begin(ctx, ToolMyPerformance, agent)
		if err := t.limiter.Allow(ctx, agent); err != nil {
			done(err)
			return errorResult(err), nil
		}

		res, err := t.performance.Summary(ctx, agent.String(), params.Arguments.Year)
		done(err)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(res.Text(), res), nil
	}
}

func (t *Tools) myZone(agent domain.AgentID) func(
	context.Context, *mcpsdk.ServerSession, *mcpsdk.CallToolParamsFor[MyZoneArgs],
) (*mcpsdk.CallToolResultFor[any], error) {
	return func(
		ctx context.Context, _ *mcpsdk.ServerSession, _ *mcpsdk.CallToolParamsFor[MyZoneArgs],
	) (*mcpsdk.CallToolResultFor[any], error) {
		ctx, done := t.begin(ctx, ToolMyZone, agent)
		if err := t.limiter.Allow(ctx, agent); err != nil {
			done(err)
			return errorResult(err), nil
		}

		res, err := t.performance.Zone(ctx, agent.String())
		done(err)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(res.Text(), res), nil
	}
}

// begin attaches a per-call logger and returns a func that emits the
// canonical log line for the call.
func (t *Tools) begin(ctx context.Context, tool string, agent domain.AgentID) (context.Context, func(error)) {
	start := time.Now()
	callLogger := t.logger.With(
		zap.String("call_id", uuid.NewString()),
		zap.String("tool", tool),
		zap.String("agent", agent.String()),
	)
	ctx = logger.ContextWithLogger(ctx, callLogger)

	return ctx, func(err error) {
		fields := []zap.Field{zap.Duration("latency", time.Since(start))}
		if err != nil {
			fields = append(fields, zap.String("outcome", outcome(err)), zap.Error(err))
			callLogger.Warn("mcp_tool_call", fields...)
			return
		}
		callLogger.Info("mcp_tool_call", append(fields, zap.String("outcome", "ok"))...)
	}
}

func textResult(summary string, payload any) *mcpsdk.CallToolResultFor[any] {
	content := []mcpsdk.Content{&mcpsdk.TextContent{Text: summary}}
	if raw, err := json.Marshal(payload); err == nil {
		content = append(content, &mcpsdk.TextContent{Text: string(raw)})
	}
	return &mcpsdk.CallToolResultFor[any]{Content: content}
}

// errorResult reports a failed call to the agent. Only validation errors
// echo details; they describe the agent's own arguments.
func errorResult(err error) *mcpsdk.CallToolResultFor[any] {
	return &mcpsdk.CallToolResultFor[any]{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: errorMessage(err)}},
	}
}

func errorMessage(err error) string {
	var ve *domain.ValidationError
	var le *ratelimit.LimitError
	switch {
	case errors.As(err, &ve):
		return "Invalid arguments: " + ve.Error()
	case errors.As(err, &le):
		return fmt.Sprintf("Too many requests. Retry in %d s.", int(math.Ceil(le.RetryAfter.Seconds())))
	case errors.Is(err, domain.ErrRateLimited):
		return "Too many requests. Retry shortly."
	case domain.IsTimeout(err):
		return "The database did not answer in time. Try again shortly."
	case errors.Is(err, domain.ErrDataSource):
		return "The database is unavailable. Try again later."
	default:
		return "Internal error."
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation_failed"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.IsTimeout(err):
		return "data_source_timeout"
	case errors.Is(err, domain.ErrDataSource):
		return "data_source_unavailable"
	default:
		return "internal_error"
	}
}
