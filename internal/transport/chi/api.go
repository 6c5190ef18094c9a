package chi

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest            ErrorCode = "bad_request"
	ErrorCodeValidationFailed      ErrorCode = "validation_failed"
	ErrorCodeUnauthenticated       ErrorCode = "unauthenticated"
	ErrorCodeRateLimited           ErrorCode = "rate_limited"
	ErrorCodeDataSourceUnavailable ErrorCode = "data_source_unavailable"
	ErrorCodeDataSourceTimeout     ErrorCode = "data_source_timeout"
	ErrorCodeInternalError         ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ListInvoicesParams are the query parameters of GET /v1/invoices.
type ListInvoicesParams struct {
	Status   *string `form:"status,omitempty" json:"status,omitempty"`
	DateFrom *string `form:"date_from,omitempty" json:"date_from,omitempty"`
	DateTo   *string `form:"date_to,omitempty" json:"date_to,omitempty"`
	Limit    *int    `form:"limit,omitempty" json:"limit,omitempty"`
}

// ListInvoicesRequest is the body of POST /v1/invoices/query.
type ListInvoicesRequest struct {
	Status   string `json:"status"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	Limit    int    `json:"limit"`
}

// AddressSearchRequest is the body of POST /v1/invoices/address-search.
type AddressSearchRequest struct {
	Query      string   `json:"query"`
	MaxResults int      `json:"max_results"`
	MinScore   *float64 `json:"min_score"`
}

// PerformanceParams are the query parameters of GET /v1/performance.
type PerformanceParams struct {
	Year *int `form:"year,omitempty" json:"year,omitempty"`
}

// PerformanceRequest is the body of POST /v1/performance. A null or absent
// year asks for the all-time summary.
type PerformanceRequest struct {
	Year *int `json:"year"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}
