package main

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus-core/internal/config"
	"github.com/haasonsaas/nexus-core/internal/jobs"
	"github.com/spf13/cobra"
)

func buildJobCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage scheduled jobs",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.AddCommand(
		buildJobListCmd(&configPath),
		buildJobRemoveCmd(&configPath),
		buildJobRunsCmd(&configPath),
		buildJobRunNowCmd(&configPath),
	)
	return cmd
}

func openJobService(configPath string) (*jobs.Service, func(), error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var store jobs.Store
	if cfg.Database.URL == "" {
		store = jobs.NewMemoryStore()
	} else {
		sqliteStore, err := jobs.OpenSQLiteStore(context.Background(), cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open job store: %w", err)
		}
		store = sqliteStore
	}

	svcCfg := jobs.Config{
		AllowEveryMinute: len(cfg.Jobs.CronAllowEveryMinute) > 0,
		EveryMinuteAllow: cfg.Jobs.CronAllowEveryMinute,
		DailyCapPerOwner: cfg.Jobs.JobsPerCallerPerDay,
	}
	return jobs.NewService(store, svcCfg, nil), func() {}, nil
}

func buildJobListCmd(configPath *string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a caller's scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openJobService(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			list, err := svc.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			for _, job := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", job.ID, job.Target, job.Schedule.Kind, job.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "caller id to list jobs for (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func buildJobRemoveCmd(configPath *string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openJobService(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return svc.Remove(cmd.Context(), owner, args[0])
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "caller id that owns the job (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func buildJobRunsCmd(configPath *string) *cobra.Command {
	var owner string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs <job-id>",
		Short: "List a job's recorded run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openJobService(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := svc.Runs(cmd.Context(), owner, args[0], limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", run.Timestamp.Format("2006-01-02T15:04:05Z07:00"), run.Status, run.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "caller id that owns the job (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func buildJobRunNowCmd(configPath *string) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "run-now <job-id>",
		Short: "Fire a job immediately, logging delivery only (no agent turn)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openJobService(*configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			run, err := svc.RunNow(cmd.Context(), owner, args[0], logOnlyExecutor{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", run.Status, run.Error)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "caller id that owns the job (required)")
	cmd.MarkFlagRequired("owner")
	return cmd
}

// logOnlyExecutor lets the CLI fire a job without spinning up the full
// agent loop (which needs a live LLM API key); it only reports whether the
// job's schedule/target/payload combination is still valid.
type logOnlyExecutor struct{}

func (logOnlyExecutor) Execute(ctx context.Context, job jobs.Job) error {
	fmt.Printf("job %s (%s) would deliver to %s\n", job.ID, job.Label, job.Target)
	return nil
}
