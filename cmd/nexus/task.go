package main

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus-core/internal/config"
	"github.com/haasonsaas/nexus-core/internal/tasks"
	"github.com/spf13/cobra"
)

func buildTaskCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect per-chat task sessions",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.AddCommand(buildTaskShowCmd(&configPath))
	return cmd
}

func buildTaskShowCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Show the active task session for a chat, creating one if absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var store tasks.Store
			if cfg.Database.URL == "" {
				store = tasks.NewMemoryStore()
			} else {
				sqliteStore, err := tasks.OpenSQLiteStore(context.Background(), cfg.Database.URL)
				if err != nil {
					return fmt.Errorf("open task store: %w", err)
				}
				store = sqliteStore
			}

			svc := tasks.NewService(store, nil)
			sess, err := svc.GetOrCreate(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%s state=%s turns=%d/%d tool_attempts=%d/%d\n",
				sess.ID, sess.State, sess.TurnCount, tasks.MaxTurns, sess.ToolAttemptCount, tasks.MaxToolAttempts)
			return nil
		},
	}
	return cmd
}
