package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/invoicegate/internal/config"
	"github.com/kailas-cloud/invoicegate/internal/identity"
	logpkg "github.com/kailas-cloud/invoicegate/internal/logger"
)

func TestVersionCmd_JSON(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--json"})
	t.Cleanup(func() { jsonOutput = false })

	require.NoError(t, root.Execute())

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "dev", got["version"])
	assert.Contains(t, got, "commit")
}

func TestMintToken(t *testing.T) {
	cfg := config.IdentityConfig{JWTSecret: strings.Repeat("s", 32), JWTIssuer: "invoicegate"}

	token, expires, err := mintToken(cfg, "A123", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	j, err := identity.NewJWT(cfg.JWTSecret, cfg.JWTIssuer)
	require.NoError(t, err)
	claims, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "A123", claims.AgentCIF)
}

func TestMintToken_Errors(t *testing.T) {
	good := config.IdentityConfig{JWTSecret: strings.Repeat("s", 32)}

	_, _, err := mintToken(good, "", time.Hour)
	assert.Error(t, err, "empty agent")

	_, _, err = mintToken(good, "A123", 0)
	assert.Error(t, err, "zero ttl")

	_, _, err = mintToken(config.IdentityConfig{JWTSecret: "short"}, "A123", time.Hour)
	assert.ErrorContains(t, err, "identity.jwt_secret")
}

func TestJSONRecoverer(t *testing.T) {
	handler := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/invoices", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":"internal_error","message":"internal error"}`, rr.Body.String())
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var sawLogger bool

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logpkg.FromContext(r.Context()).Core().Enabled(zap.InfoLevel)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})
	handler := chiMiddleware.RequestID(wideEventMiddleware(zap.New(core))(inner))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/invoices?status=PAGADA", http.NoBody))

	assert.True(t, sawLogger)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/v1/invoices", fields["path"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.EqualValues(t, 2, fields["response_bytes"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestWideEventMiddleware_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := wideEventMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/invoices", http.NoBody))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zap.InfoLevel, levelFor(http.StatusOK))
	assert.Equal(t, zap.WarnLevel, levelFor(http.StatusTooManyRequests))
	assert.Equal(t, zap.ErrorLevel, levelFor(http.StatusServiceUnavailable))
}

func TestStoreConfig_SharesServerSettings(t *testing.T) {
	db := config.DatabaseConfig{
		Host: "pg", Port: 5433, Name: "facturacion", User: "ro", Password: "pw", SSLMode: "require",
		ConnectTimeoutSec: 3, MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetimeSec: 60,
	}

	perf := storeConfig(db, "performance")
	assert.Equal(t, "performance", perf.Name)
	assert.Equal(t, "pg", perf.Host)
	assert.Equal(t, 5433, perf.Port)
	assert.Equal(t, "ro", perf.User)
	assert.Equal(t, 3*time.Second, perf.ConnectTimeout)
	assert.Equal(t, time.Minute, perf.ConnMaxLifetime)

	assert.Equal(t, "facturacion", storeConfig(db, db.Name).Name)
}
