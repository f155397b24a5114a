// Package main provides the deepscout CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/probeworks/deepscout/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "deepscout",
		Short: "Autonomous web research agents",
		Long: `A CLI for running autonomous research agents over web search.

Two patterns available:
- research: Single researcher on one topic
- supervise: A supervisor decomposes the question and delegates to concurrent researchers`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini, openrouter)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	// Add commands
	rootCmd.AddCommand(researchCmd())
	rootCmd.AddCommand(superviseCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func researchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "research [query]",
		Short: "Run a single researcher on one topic",
		Long: `Run one researcher directly on the query.

The researcher alternates between web searches and reflection until it has
enough material or its iteration budget runs out, then produces a compressed
summary of its findings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Verbose: verbose}
			return cli.Research(context.Background(), args[0], opts)
		},
	}
}

func superviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise [query]",
		Short: "Decompose a question and delegate to concurrent researchers",
		Long: `Run the full supervisor pipeline.

The supervisor breaks the question into independent sub-topics, runs one
researcher per sub-topic concurrently, and synthesizes their findings into a
report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Verbose: verbose}
			return cli.Supervise(context.Background(), args[0], opts)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP research server",
		Long: `Serve the research pipeline over HTTP.

Submit research with POST /research and poll GET /research/{id} for results.
Tasks are persisted in SQLite across restarts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{Provider: provider, Verbose: verbose}
			return cli.Serve(context.Background(), addr, opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SERVER_ADDR or :8080)")
	return cmd
}
