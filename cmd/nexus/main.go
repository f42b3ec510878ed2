// Package main provides the CLI entry point for the Nexus assistant core:
// the agent orchestration engine and the time-based job engine described
// in internal/agent, internal/dispatch, internal/jobs, and internal/tasks.
package main

import (
	"fmt"
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
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nexus",
		Short: "Nexus agent orchestration and job engine",
		Long: `Nexus runs the agent loop (plan/act/reflect/write) and the time-based
job engine (reminders, scheduled agent turns) described by this repository's
internal/agent, internal/dispatch, and internal/jobs packages.`,
		Version: fmt.Sprintf("%s (%s, %s)", version, commit, date),
	}

	cmd.AddCommand(buildServeCmd())
	cmd.AddCommand(buildJobCmd())
	cmd.AddCommand(buildTaskCmd())
	return cmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("NEXUS_CONFIG"); env != "" {
		return env
	}
	return "nexus.yaml"
}
