package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/format"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	healthuc "github.com/kailas-cloud/invoicegate/internal/usecase/health"
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

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(t *testing.T, inv InvoiceService, h HealthChecker) http.Handler {
	t.Helper()
	resolver, err := identity.NewHeader("")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	r := chi.NewRouter()
	NewServer(inv, h, zap.NewNop()).Routes(r, RouteOptions{Resolver: resolver})
	return r
}

func newRouterWith(inv InvoiceService, resolver identity.Resolver, lim *mockLimiter) http.Handler {
	r := chi.NewRouter()
	NewServer(inv, &mockHealth{}, zap.NewNop()).Routes(r, RouteOptions{Resolver: resolver, Limiter: lim})
	return r
}

func do(h http.Handler, method, target, body string, agent string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if agent != "" {
		req.Header.Set(identity.HeaderAgentCIF, agent)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Listing ---

func TestListInvoices_BindsQuery(t *testing.T) {
	inv := &mockInvoices{listRes: format.ListingResult{Invoices: []format.Invoice{}}}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodGet, "/v1/invoices?status=PENDIENTE&date_from=2024-01-01&date_to=2024-12-31&limit=20", "", "A123")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if inv.lastCaller != "A123" {
		t.Errorf("caller: got %q", inv.lastCaller)
	}
	want := invoiceuc.ListQuery{Status: "PENDIENTE", DateFrom: "2024-01-01", DateTo: "2024-12-31", Limit: 20}
	if inv.lastList != want {
		t.Errorf("query: got %+v, want %+v", inv.lastList, want)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}
}

func TestListInvoices_NoParams(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodGet, "/v1/invoices", "", "A123")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if inv.lastList != (invoiceuc.ListQuery{}) {
		t.Errorf("expected zero query, got %+v", inv.lastList)
	}
}

func TestListInvoices_BadLimit(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodGet, "/v1/invoices?limit=ten", "", "A123")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeValidationFailed {
		t.Errorf("code: got %s", resp.Code)
	}
	if inv.calls != 0 {
		t.Error("service must not be called on a binding error")
	}
}

func TestListInvoices_Unauthenticated(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodGet, "/v1/invoices", "", "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorCodeUnauthenticated {
		t.Errorf("code: got %s", resp.Code)
	}
	if inv.calls != 0 {
		t.Error("service must not be called without a caller")
	}
}

func TestQueryInvoices_Body(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodPost, "/v1/invoices/query", `{"status":"PAGADA","limit":5}`, "A123")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if inv.lastList.Status != "PAGADA" || inv.lastList.Limit != 5 {
		t.Errorf("query: got %+v", inv.lastList)
	}
}

func TestQueryInvoices_MalformedBody(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	for _, body := range []string{`{"status":`, `{"agent_cif":"B456"}`} {
		rr := do(h, http.MethodPost, "/v1/invoices/query", body, "A123")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", body, rr.Code)
		}
		if resp := decodeError(t, rr); resp.Code != ErrorCodeBadRequest {
			t.Errorf("%s: code %s", body, resp.Code)
		}
	}
	if inv.calls != 0 {
		t.Error("service must not be called on a malformed body")
	}
}

// --- Address search ---

func TestSearchByAddress(t *testing.T) {
	inv := &mockInvoices{searchRes: format.MatchResult{Query: "Calle Mayor 5", Found: true, Count: 1,
		Matches: []format.Match{{Invoice: format.Invoice{ID: "F-001"}, Score: 1}}}}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodPost, "/v1/invoices/address-search",
		`{"query":"Calle Mayor 5","max_results":3,"min_score":0.4}`, "A123")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if inv.lastSearch.Query != "Calle Mayor 5" || inv.lastSearch.MaxResults != 3 {
		t.Errorf("search: got %+v", inv.lastSearch)
	}
	if inv.lastSearch.MinScore == nil || *inv.lastSearch.MinScore != 0.4 {
		t.Errorf("min score: got %v", inv.lastSearch.MinScore)
	}

	var got format.MatchResult
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Found || got.Count != 1 || got.Matches[0].ID != "F-001" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestSearchByAddress_OmittedMinScore(t *testing.T) {
	inv := &mockInvoices{}
	h := newTestRouter(t, inv, &mockHealth{})

	rr := do(h, http.MethodPost, "/v1/invoices/address-search", `{"query":"Mayor"}`, "A123")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if inv.lastSearch.MinScore != nil {
		t.Errorf("omitted min_score must stay nil, got %v", *inv.lastSearch.MinScore)
	}
}

// --- Error mapping ---

func TestDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        domain.NewValidationError("status", "unknown status %q", "OPEN"),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeValidationFailed,
			wantMsg:    `validation failed: status: unknown status "OPEN"`,
		},
		{
			name:       "data source",
			err:        domain.NewDataSourceError("list invoices", false, errors.New("dial tcp 10.0.0.5:5432: refused")),
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrorCodeDataSourceUnavailable,
			wantMsg:    "data source error",
		},
		{
			name:       "timeout",
			err:        domain.NewDataSourceError("list invoices", true, context.DeadlineExceeded),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeDataSourceTimeout,
			wantMsg:    "data source error (timeout)",
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrorCodeInternalError,
			wantMsg:    "internal error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(t, &mockInvoices{err: tc.err}, &mockHealth{})
			rr := do(h, http.MethodGet, "/v1/invoices", "", "A123")

			if rr.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rr.Code, tc.wantStatus)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.wantCode {
				t.Errorf("code: got %s, want %s", resp.Code, tc.wantCode)
			}
			if resp.Message != tc.wantMsg {
				t.Errorf("message: got %q, want %q", resp.Message, tc.wantMsg)
			}
		})
	}
}

func TestSafeDomainMessage_HidesInternals(t *testing.T) {
	err := domain.NewDataSourceError("list invoices", false, errors.New("password authentication failed for user \"ro\""))
	if msg := safeDomainMessage(err); strings.Contains(msg, "password") {
		t.Errorf("message leaks driver detail: %q", msg)
	}
}

// --- Health, index, routing ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status     healthuc.Status
		wantStatus int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			report := healthuc.Report{Status: tc.status, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentDatabase: healthuc.CheckOK,
			}}
			h := newTestRouter(t, &mockInvoices{}, &mockHealth{report: report})

			rr := do(h, http.MethodGet, "/health", "", "")
			if rr.Code != tc.wantStatus {
				t.Errorf("got %d, want %d", rr.Code, tc.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tc.status) || resp.Checks["database"] != "ok" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	h := newTestRouter(t, &mockInvoices{}, &mockHealth{})

	rr := do(h, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp IndexResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "invoicegate" {
		t.Errorf("service: got %q", resp.Service)
	}
	if _, ok := resp.Endpoints["GET /v1/invoices"]; !ok {
		t.Errorf("index must list the listing endpoint: %v", resp.Endpoints)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, &mockInvoices{}, &mockHealth{})

	rr := do(h, http.MethodGet, "/v1/customers", "", "A123")
	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rr.Code)
	}

	rr = do(h, http.MethodDelete, "/v1/invoices", "", "A123")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want 405", rr.Code)
	}
}

func TestMCPMount(t *testing.T) {
	resolver, _ := identity.NewHeader("")
	mounted := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mounted = true
		w.WriteHeader(http.StatusAccepted)
	})

	r := chi.NewRouter()
	NewServer(&mockInvoices{}, &mockHealth{}, zap.NewNop()).Routes(r, RouteOptions{Resolver: resolver, MCP: mcp})

	rr := do(r, http.MethodGet, "/mcp/sse", "", "")
	if !mounted || rr.Code != http.StatusAccepted {
		t.Errorf("mcp handler not reached: mounted=%v code=%d", mounted, rr.Code)
	}
}
