package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/invoicegate/internal/domain"
	mcpTransport "github.com/kailas-cloud/invoicegate/internal/transport/mcp"
)

func newMCPCmd() *cobra.Command {
	var agentFlag string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio for one agent",
		Long: `Serve list_invoices and search_invoices_by_address (plus my_performance
and my_zone when performance.enabled is set) over stdin/stdout.
The session acts for the agent given by --agent, or identity.default_agent
from the configuration. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(baseContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveStdio(ctx, envName, agentFlag)
		},
	}
	cmd.Flags().StringVar(&agentFlag, "agent", "", "Agent CIF the session acts for")
	return cmd
}

func serveStdio(ctx context.Context, env, agentFlag string) error {
	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	defer a.close()

	raw := strings.TrimSpace(agentFlag)
	if raw == "" {
		raw = a.cfg.Identity.DefaultAgent
	}
	if raw == "" {
		return fmt.Errorf("no agent: pass --agent or set identity.default_agent")
	}
	agent, err := domain.NewAgentID(raw)
	if err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	return a.tools().RunStdio(ctx, agent)
}

// tools builds the MCP tool set. A nil service must not reach WithPerformance
// as a typed nil interface.
func (a *app) tools() *mcpTransport.Tools {
	tools := mcpTransport.NewTools(a.invoices, a.logger).WithLimiter(a.limiter)
	if a.performance != nil {
		tools.WithPerformance(a.performance)
	}
	return tools
}

func baseContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
