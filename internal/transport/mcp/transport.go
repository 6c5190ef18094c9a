package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/identity"
)

// SSEPath is where the SSE endpoint lives relative to the mount point.
const SSEPath = "/sse"

// RunStdio serves one session for agent over stdin/stdout until ctx is
// canceled or the client disconnects.
func (t *Tools) RunStdio(ctx context.Context, agent domain.AgentID) error {
	t.logger.Info("Serving MCP over stdio", zap.String("agent", agent.String()))
	if err := t.NewServer(agent).Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp stdio session: %w", err)
	}
	return nil
}

type agentKey struct{}

// SSEHandler serves MCP over SSE. The caller is resolved once, when the
// session stream is opened, and bound to the session's server. Messages
// posted to an existing session are routed by session id.
func (t *Tools) SSEHandler(resolver identity.Resolver) http.Handler {
	sse := mcpsdk.NewSSEHandler(func(r *http.Request) *mcpsdk.Server {
		agent, ok := r.Context().Value(agentKey{}).(domain.AgentID)
		if !ok || agent == "" {
			return nil
		}
		return t.NewServer(agent)
	})

	router := chi.NewRouter()
	router.Post(SSEPath, sse.ServeHTTP)
	router.Get(SSEPath, func(w http.ResponseWriter, r *http.Request) {
		agent, err := resolver.Resolve(r.Context(), r.Header)
		if err != nil {
			t.reject(w, err)
			return
		}
		// The stream outlives the server's write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		t.logger.Info("MCP session opened", zap.String("agent", agent.String()))
		sse.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), agentKey{}, agent)))
	})
	return router
}

func (t *Tools) reject(w http.ResponseWriter, err error) {
	status, code, msg := http.StatusUnauthorized, "unauthenticated", domain.ErrUnauthenticated.Error()
	if errors.Is(err, domain.ErrDataSource) {
		status, code, msg = http.StatusBadGateway, "data_source_unavailable", domain.ErrDataSource.Error()
		t.logger.Error("Identity directory unavailable", zap.Error(err))
	} else {
		t.logger.Info("MCP caller not authenticated", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": msg})
}
