package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/invoicegate/internal/config"
	"github.com/kailas-cloud/invoicegate/internal/version"
)

var (
	envName    string
	jsonOutput bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "invoicegate",
		Short: "Read-only invoice queries for real estate agents",
		Long: `invoicegate answers invoice questions on behalf of one agent at a time:
filtered listings and fuzzy search by property address, over HTTP or as
MCP tools for AI assistants. Every read is scoped to the calling agent.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(),
		"Configuration environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(newServeCmd(), newMCPCmd(), newTokenCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			if jsonOutput {
				printJSON(cmd, map[string]string{
					"version": version.Version,
					"commit":  version.Commit,
					"date":    version.Date,
				})
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), "invoicegate", version.String())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
