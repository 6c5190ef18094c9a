package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/invoicegate/internal/metrics"
	chiTransport "github.com/kailas-cloud/invoicegate/internal/transport/chi"
)

func newServeCmd() *cobra.Command {
	var noMCP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the MCP SSE endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(baseContext(cmd), envName, !noMCP)
		},
	}
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Do not mount the MCP SSE endpoint")
	return cmd
}

func serve(ctx context.Context, env string, withMCP bool) error {
	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	opts := chiTransport.RouteOptions{Resolver: a.resolver, Limiter: a.limiter}
	if withMCP {
		tools := a.tools()
		opts.MCP = tools.SSEHandler(a.resolver)
	}

	server := chiTransport.NewServer(a.invoices, a.health, logger)
	if a.performance != nil {
		server.WithPerformance(a.performance)
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware(chiTransport.PathMetrics, chiTransport.PathHealth))
	server.Routes(r, opts)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  seconds(a.cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: seconds(a.cfg.HTTP.WriteTimeoutSec),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr), zap.Bool("mcp_sse", withMCP))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(a.cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
