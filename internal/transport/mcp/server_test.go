package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/format"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	"github.com/kailas-cloud/invoicegate/internal/ratelimit"
	invoiceuc "github.com/kailas-cloud/invoicegate/internal/usecase/invoice"
)

// --- Mocks ---

type mockInvoices struct {
	listRes   format.ListingResult
	searchRes format.MatchResult
	err       error

	calls      int
	lastCaller string
	lastList   invoiceuc.ListQuery
	lastSearch invoiceuc.SearchQuery
}

func (m *mockInvoices) List(_ context.Context, callerID string, q invoiceuc.ListQuery) (format.ListingResult, error) {
	m.calls++
	m.lastCaller = callerID
	m.lastList = q
	return m.listRes, m.err
}

func (m *mockInvoices) SearchByAddress(
	_ context.Context, callerID string, q invoiceuc.SearchQuery,
) (format.MatchResult, error) {
	m.calls++
	m.lastCaller = callerID
	m.lastSearch = q
	return m.searchRes, m.err
}

type mockLimiter struct{ err error }

func (m *mockLimiter) Allow(context.Context, domain.AgentID) error { return m.err }

type mockResolver struct {
	agent domain.AgentID
	err   error
}

func (m *mockResolver) Resolve(context.Context, http.Header) (domain.AgentID, error) {
	return m.agent, m.err
}

func texts(t *testing.T, res *mcpsdk.CallToolResultFor[any]) []string {
	t.Helper()
	out := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		tc, ok := c.(*mcpsdk.TextContent)
		require.True(t, ok, "unexpected content type %T", c)
		out = append(out, tc.Text)
	}
	return out
}

// --- Tools ---

func TestNewServer_RegistersTools(t *testing.T) {
	tools := NewTools(&mockInvoices{}, zap.NewNop())
	assert.NotNil(t, tools.NewServer("A123"))
}

func TestListInvoices_UsesSessionAgent(t *testing.T) {
	inv := &mockInvoices{listRes: format.ListingResult{
		Count:    1,
		Invoices: []format.Invoice{{ID: "F-001", Status: "PENDIENTE", IssueDate: "2024-11-01", Amount: "100.00", Currency: "EUR"}},
		Filters:  format.AppliedFilters{Status: "PENDIENTE", Limit: 500},
	}}
	handler := NewTools(inv, zap.NewNop()).listInvoices("A123")

	res, err := handler(context.Background(), nil, &mcpsdk.CallToolParamsFor[ListInvoicesArgs]{
		Name:      ToolListInvoices,
		Arguments: ListInvoicesArgs{Status: "PENDIENTE", DateFrom: "2024-01-01", Limit: 10},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "A123", inv.lastCaller)
	assert.Equal(t, invoiceuc.ListQuery{Status: "PENDIENTE", DateFrom: "2024-01-01", Limit: 10}, inv.lastList)

	out := texts(t, res)
	require.Len(t, out, 2)
	assert.Equal(t, inv.listRes.Text(), out[0])

	var payload format.ListingResult
	require.NoError(t, json.Unmarshal([]byte(out[1]), &payload))
	assert.Equal(t, 1, payload.Count)
	assert.Equal(t, "F-001", payload.Invoices[0].ID)
}

func TestSearchByAddress_PassesArguments(t *testing.T) {
	inv := &mockInvoices{searchRes: format.MatchResult{Query: "Calle Mayor 5", Matches: []format.Match{}}}
	handler := NewTools(inv, zap.NewNop()).searchByAddress("A123")

	floor := 0.5
	res, err := handler(context.Background(), nil, &mcpsdk.CallToolParamsFor[SearchByAddressArgs]{
		Name:      ToolSearchByAddress,
		Arguments: SearchByAddressArgs{Query: "Calle Mayor 5", MaxResults: 3, MinScore: &floor},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "A123", inv.lastCaller)
	assert.Equal(t, "Calle Mayor 5", inv.lastSearch.Query)
	assert.Equal(t, 3, inv.lastSearch.MaxResults)
	require.NotNil(t, inv.lastSearch.MinScore)
	assert.InDelta(t, 0.5, *inv.lastSearch.MinScore, 1e-9)
	assert.Contains(t, texts(t, res)[0], `No invoices match address "Calle Mayor 5"`)
}

func TestToolErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", domain.NewValidationError("status", "unknown status %q", "OPEN"), `Invalid arguments: validation failed: status: unknown status "OPEN"`},
		{"timeout", domain.NewDataSourceError("list invoices", true, context.DeadlineExceeded), "did not answer in time"},
		{"unavailable", domain.NewDataSourceError("list invoices", false, errors.New("dial tcp: refused")), "unavailable"},
		{"internal", errors.New("boom"), "Internal error."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewTools(&mockInvoices{err: tc.err}, zap.NewNop()).listInvoices("A123")
			res, err := handler(context.Background(), nil, &mcpsdk.CallToolParamsFor[ListInvoicesArgs]{})
			require.NoError(t, err, "tool failures are results, not protocol errors")
			assert.True(t, res.IsError)
			out := texts(t, res)
			require.Len(t, out, 1)
			assert.Contains(t, out[0], tc.want)
			assert.NotContains(t, out[0], "dial tcp")
		})
	}
}

func TestRateLimitedToolCall(t *testing.T) {
	inv := &mockInvoices{}
	lim := &mockLimiter{err: &ratelimit.LimitError{Agent: "A123", RetryAfter: 1200 * time.Millisecond}}
	handler := NewTools(inv, zap.NewNop()).WithLimiter(lim).searchByAddress("A123")

	res, err := handler(context.Background(), nil, &mcpsdk.CallToolParamsFor[SearchByAddressArgs]{
		Arguments: SearchByAddressArgs{Query: "Mayor"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Too many requests. Retry in 2 s.", texts(t, res)[0])
	assert.Zero(t, inv.calls, "rejected calls must not reach the service")
}

func TestWithLimiter_NilKeepsNop(t *testing.T) {
	tools := NewTools(&mockInvoices{}, zap.NewNop()).WithLimiter(nil)
	assert.Equal(t, ratelimit.Nop{}, tools.limiter)
}

// --- SSE ---

func TestSSEHandler_RejectsUnauthenticated(t *testing.T) {
	tools := NewTools(&mockInvoices{}, zap.NewNop())
	resolver, err := identity.NewHeader("")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	tools.SSEHandler(resolver).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, SSEPath, http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestSSEHandler_DirectoryOutage(t *testing.T) {
	tools := NewTools(&mockInvoices{}, zap.NewNop())
	resolver := &mockResolver{err: domain.NewDataSourceError("agent lookup", false, errors.New("reset"))}

	rr := httptest.NewRecorder()
	tools.SSEHandler(resolver).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, SSEPath, http.NoBody))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "reset")
}

func TestSSEHandler_UnknownRoute(t *testing.T) {
	tools := NewTools(&mockInvoices{}, zap.NewNop())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/other", strings.NewReader(""))
	tools.SSEHandler(&mockResolver{agent: "A123"}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
