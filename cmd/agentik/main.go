// Package main is the CLI entry point for agentik, a terminal-based AI
// coding assistant. It wires the agent loop, session store, context
// manager, compactor, and repo map together and exposes a thin command
// surface over them; the interactive terminal UI itself is an external
// collaborator (§1) and is not implemented here.
//
// # Basic usage
//
//	agentik run --message "add a health check endpoint"
//	agentik run --session <id> --message "now add a test for it"
//	agentik resume --session <id>
//	agentik resume --most-recent
//
// # Environment variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentik",
		Short:        "agentik - terminal AI coding assistant engine",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildResumeCmd(),
		buildSessionsCmd(),
		buildRepomapCmd(),
	)
	return rootCmd
}
