package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/invoicegate/internal/config"
	"github.com/kailas-cloud/invoicegate/internal/domain"
	"github.com/kailas-cloud/invoicegate/internal/identity"
)

func newTokenCmd() *cobra.Command {
	var (
		agentFlag string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an agent (jwt identity mode)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envName)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, expires, err := mintToken(cfg.Identity, agentFlag, ttl)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd, map[string]string{
					"token":      token,
					"expires_at": expires.UTC().Format(time.RFC3339),
				})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&agentFlag, "agent", "", "Agent CIF to put in the agent_cif claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func mintToken(cfg config.IdentityConfig, rawAgent string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("ttl must be positive")
	}
	agent, err := domain.NewAgentID(rawAgent)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("agent: %w", err)
	}
	j, err := identity.NewJWT(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("identity.jwt_secret: %w", err)
	}
	expires := time.Now().Add(ttl)
	token, err := j.Issue(agent, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}
