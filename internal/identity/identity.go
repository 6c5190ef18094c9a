// Package identity resolves the calling agent from request context.
//
// The resolver is the only trust boundary: whatever it returns is applied
// as the mandatory row scope of every invoice read.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/invoicegate/internal/domain"
)

// Request headers understood by the resolvers.
const (
	HeaderAgentCIF   = "X-Agent-CIF"
	HeaderAgentEmail = "X-Agent-Email"
	HeaderAuth       = "Authorization"
)

// Resolution modes.
const (
	ModeEnv    = "env"
	ModeHeader = "header"
	ModeEmail  = "email"
	ModeJWT    = "jwt"
)

// Resolver resolves the caller from request headers. Headers may be nil
// when there is no request (stdio tool sessions).
type Resolver interface {
	Resolve(ctx context.Context, h http.Header) (domain.AgentID, error)
}

// Directory looks agents up by e-mail.
type Directory interface {
	LookupByEmail(ctx context.Context, email string) (domain.AgentID, error)
}

// Config selects and parameterizes a resolver.
type Config struct {
	Mode         string
	DefaultAgent string
	JWTSecret    string
	JWTIssuer    string
}

// New builds the resolver selected by cfg.Mode. dir is only used in email mode.
func New(cfg Config, dir Directory) (Resolver, error) {
	switch cfg.Mode {
	case ModeEnv:
		return NewStatic(cfg.DefaultAgent)
	case ModeHeader:
		return NewHeader(cfg.DefaultAgent)
	case ModeEmail:
		if dir == nil {
			return nil, fmt.Errorf("email identity mode requires an agent directory")
		}
		return NewEmail(dir), nil
	case ModeJWT:
		return NewJWT(cfg.JWTSecret, cfg.JWTIssuer)
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Mode)
	}
}

// Static always resolves to one configured agent.
type Static struct {
	agent domain.AgentID
}

// NewStatic creates a fixed-identity resolver.
func NewStatic(agent string) (*Static, error) {
	id, err := domain.NewAgentID(agent)
	if err != nil {
		return nil, fmt.Errorf("default agent: %w", err)
	}
	return &Static{agent: id}, nil
}

// Resolve returns the configured agent.
func (s *Static) Resolve(_ context.Context, _ http.Header) (domain.AgentID, error) {
	return s.agent, nil
}

// Header trusts the X-Agent-CIF header and falls back to a default agent
// when the header is absent. An empty fallback makes the header mandatory.
type Header struct {
	fallback domain.AgentID
}

// NewHeader creates a header resolver. fallback may be empty.
func NewHeader(fallback string) (*Header, error) {
	h := &Header{}
	if strings.TrimSpace(fallback) != "" {
		id, err := domain.NewAgentID(fallback)
		if err != nil {
			return nil, fmt.Errorf("default agent: %w", err)
		}
		h.fallback = id
	}
	return h, nil
}

// Resolve reads X-Agent-CIF.
func (h *Header) Resolve(_ context.Context, hdr http.Header) (domain.AgentID, error) {
	raw := headerValue(hdr, HeaderAgentCIF)
	if raw == "" {
		if h.fallback == "" {
			return "", fmt.Errorf("%w: missing %s header", domain.ErrUnauthenticated, HeaderAgentCIF)
		}
		return h.fallback, nil
	}
	return asAgent(raw)
}

// Email resolves the X-Agent-Email header through the agent directory.
type Email struct {
	dir Directory
}

// NewEmail creates a directory-backed resolver.
func NewEmail(dir Directory) *Email {
	return &Email{dir: dir}
}

// Resolve looks the e-mail up. Unknown addresses are unauthenticated;
// directory failures pass through as data source errors.
func (e *Email) Resolve(ctx context.Context, hdr http.Header) (domain.AgentID, error) {
	email := headerValue(hdr, HeaderAgentEmail)
	if email == "" {
		return "", fmt.Errorf("%w: missing %s header", domain.ErrUnauthenticated, HeaderAgentEmail)
	}
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: malformed e-mail", domain.ErrUnauthenticated)
	}

	id, err := e.dir.LookupByEmail(ctx, email)
	if err != nil {
		if isDataSource(err) {
			return "", err
		}
		return "", fmt.Errorf("%w: unknown agent e-mail", domain.ErrUnauthenticated)
	}
	return id, nil
}

func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h.Get(name))
}

func asAgent(raw string) (domain.AgentID, error) {
	id, err := domain.NewAgentID(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid agent identifier", domain.ErrUnauthenticated)
	}
	return id, nil
}

func isDataSource(err error) bool {
	return errors.Is(err, domain.ErrDataSource)
}
