package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	"github.com/kailas-cloud/invoicegate/internal/logger"
	"github.com/kailas-cloud/invoicegate/internal/ratelimit"
	healthuc "github.com/kailas-cloud/invoicegate/internal/usecase/health"
	invoiceuc "github.com/kailas-cloud/invoicegate/internal/usecase/invoice"
	"github.com/kailas-cloud/invoicegate/internal/version"
)

// Routes.
const (
	PathIndex         = "/"
	PathHealth        = "/health"
	PathMetrics       = "/metrics"
	PathInvoices      = "/v1/invoices"
	PathInvoiceQuery  = "/v1/invoices/query"
	PathAddressSearch = "/v1/invoices/address-search"
	PathPerformance   = "/v1/performance"
	PathZone          = "/v1/zone"
	PathMCP           = "/mcp"
)

// maxBodyBytes bounds request bodies; both bodies are a handful of fields.
const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the invoice API over HTTP.
type Server struct {
	invoices      InvoiceService
	performance   PerformanceService
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// RouteOptions carries the per-request collaborators of the protected routes.
type RouteOptions struct {
	Resolver identity.Resolver
	Limiter  ratelimit.Limiter
	// MCP, when set, is mounted under PathMCP outside the identity middleware;
	// it resolves identity per session itself.
	MCP http.Handler
}

// NewServer creates an HTTP API server.
func NewServer(invoices InvoiceService, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		invoices: invoices,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		dataSourceHandler,
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, ErrorCodeUnauthenticated),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
	}
	return s
}

// WithPerformance enables the performance and zone routes.
func (s *Server) WithPerformance(p PerformanceService) *Server {
	s.performance = p
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router, opts RouteOptions) {
	r.Get(PathIndex, s.Index)
	r.Get(PathHealth, s.HealthCheck)
	r.Get(PathMetrics, s.Metrics)
	if opts.MCP != nil {
		r.Mount(PathMCP, opts.MCP)
	}

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(opts.Resolver))
		r.Use(RateLimitMiddleware(opts.Limiter))
		r.Get(PathInvoices, s.ListInvoices)
		r.Post(PathInvoiceQuery, s.QueryInvoices)
		r.Post(PathAddressSearch, s.SearchByAddress)
		if s.performance != nil {
			r.Get(PathPerformance, s.GetPerformance)
			r.Post(PathPerformance, s.QueryPerformance)
			r.Get(PathZone, s.GetZone)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// ListInvoices handles GET /v1/invoices.
func (s *Server) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var params ListInvoicesParams
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "status", query, &params.Status); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid query parameter status")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "date_from", query, &params.DateFrom); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid query parameter date_from")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "date_to", query, &params.DateTo); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid query parameter date_to")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &params.Limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid query parameter limit")
		return
	}

	s.list(w, r, invoiceuc.ListQuery{
		Status:   deref(params.Status),
		DateFrom: deref(params.DateFrom),
		DateTo:   deref(params.DateTo),
		Limit:    deref(params.Limit),
	})
}

// QueryInvoices handles POST /v1/invoices/query.
func (s *Server) QueryInvoices(w http.ResponseWriter, r *http.Request) {
	var req ListInvoicesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.list(w, r, invoiceuc.ListQuery{
		Status:   req.Status,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Limit:    req.Limit,
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, q invoiceuc.ListQuery) {
	agent, ok := AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	res, err := s.invoices.List(r.Context(), agent.String(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SearchByAddress handles POST /v1/invoices/address-search.
func (s *Server) SearchByAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	agent, ok := AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	res, err := s.invoices.SearchByAddress(r.Context(), agent.String(), invoiceuc.SearchQuery{
		Query:      req.Query,
		MaxResults: req.MaxResults,
		MinScore:   req.MinScore,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetPerformance handles GET /v1/performance.
func (s *Server) GetPerformance(w http.ResponseWriter, r *http.Request) {
	var params PerformanceParams
	if err := runtime.BindQueryParameter("form", true, false, "year", r.URL.Query(), &params.Year); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid query parameter year")
		return
	}
	s.summary(w, r, params.Year)
}

// QueryPerformance handles POST /v1/performance.
func (s *Server) QueryPerformance(w http.ResponseWriter, r *http.Request) {
	var req PerformanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.summary(w, r, req.Year)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request, year *int) {
	agent, ok := AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	res, err := s.performance.Summary(r.Context(), agent.String(), year)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GetZone handles GET /v1/zone.
func (s *Server) GetZone(w http.ResponseWriter, r *http.Request) {
	agent, ok := AgentFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	res, err := s.performance.Zone(r.Context(), agent.String())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	// A degraded limiter store still serves invoices.
	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"GET " + PathInvoices:       "list the caller's invoices",
		"POST " + PathInvoiceQuery:  "list the caller's invoices (JSON body)",
		"POST " + PathAddressSearch: "fuzzy search the caller's invoices by property address",
		"GET " + PathHealth:         "service health",
		"GET " + PathMetrics:        "Prometheus metrics",
	}
	if s.performance != nil {
		endpoints["GET "+PathPerformance] = "the caller's sales figures for ?year= or all time"
		endpoints["POST "+PathPerformance] = "the caller's sales figures (JSON body)"
		endpoints["GET "+PathZone] = "the caller's assigned zone"
	}
	writeJSON(w, http.StatusOK, IndexResponse{
		Service:   "invoicegate",
		Version:   version.Version,
		Endpoints: endpoints,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation errors carry
// only the caller's own input; everything else collapses to its sentinel.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrDataSource,
		domain.ErrUnauthenticated,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// dataSourceHandler splits data source failures into timeouts and outages.
func dataSourceHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDataSource) {
		return false
	}
	if domain.IsTimeout(err) {
		writeError(w, http.StatusServiceUnavailable, ErrorCodeDataSourceTimeout, msg+" (timeout)")
		return true
	}
	writeError(w, http.StatusBadGateway, ErrorCodeDataSourceUnavailable, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if errors.Is(err, domain.ErrDataSource) {
				log.Error("data source error", zap.Error(err))
			} else {
				log.Warn("domain error", zap.Error(err))
			}
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
