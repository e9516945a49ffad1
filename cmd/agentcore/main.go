// Package main provides the agentcore CLI: run a configured agent from the
// terminal and inspect the sessions it persisted.
//
// # Basic Usage
//
// Run the configured agent once:
//
//	agentcore run --config agentcore.yaml "What is the capital of France?"
//
// Stream the answer and continue an existing session:
//
//	agentcore run --stream --session 42 "And of Spain?"
//
// Manage persisted sessions:
//
//	agentcore sessions list
//	agentcore sessions show 42
//
// # Environment Variables
//
//   - AGENTCORE_CONFIG: Path to the configuration file (default: agentcore.yaml)
//   - OPENAI_API_KEY: OpenAI API key
//   - ANTHROPIC_API_KEY: Anthropic API key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agentcore",
		Short:        "agentcore - run agents with memory, tools, teams and reasoning",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildSessionsCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}
