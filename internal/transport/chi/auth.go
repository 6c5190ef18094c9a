package chi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	"github.com/kailas-cloud/invoicegate/internal/logger"
	"github.com/kailas-cloud/invoicegate/internal/ratelimit"
)

type agentKey struct{}

// ContextWithAgent stores the resolved caller in the context.
func ContextWithAgent(ctx context.Context, agent domain.AgentID) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

// AgentFromContext returns the caller resolved by IdentityMiddleware.
func AgentFromContext(ctx context.Context) (domain.AgentID, bool) {
	agent, ok := ctx.Value(agentKey{}).(domain.AgentID)
	return agent, ok && agent != ""
}

// IdentityMiddleware resolves the caller from request headers and rejects
// the request when no identity can be established. A directory outage is
// reported as a data source failure, not as a missing identity.
func IdentityMiddleware(resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agent, err := resolver.Resolve(r.Context(), r.Header)
			if err != nil {
				log := logger.FromContext(r.Context())
				switch {
				case errors.Is(err, domain.ErrDataSource):
					log.Error("Identity directory unavailable", zap.Error(err))
					writeError(w, http.StatusBadGateway, ErrorCodeDataSourceUnavailable, domain.ErrDataSource.Error())
				default:
					log.Info("Caller not authenticated", zap.Error(err))
					writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, domain.ErrUnauthenticated.Error())
				}
				return
			}

			ctx := ContextWithAgent(r.Context(), agent)
			ctx = logger.WithFields(ctx, zap.String("agent", agent.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware throttles requests per resolved caller. It must run
// after IdentityMiddleware; requests without a caller pass through.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agent, ok := AgentFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if err := limiter.Allow(r.Context(), agent); err != nil {
				var le *ratelimit.LimitError
				if errors.As(err, &le) && le.RetryAfter > 0 {
					secs := int(math.Ceil(le.RetryAfter.Seconds()))
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				writeError(w, http.StatusTooManyRequests, ErrorCodeRateLimited, domain.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
