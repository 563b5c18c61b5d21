package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/forgo/occasions/api/internal/jobs"
	"github.com/spf13/cobra"
)

const defaultFailureLog = "./data/failed_jobs.json"

func newRootCmd() *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:           "failedjobs",
		Short:         "Manage permanently failed background jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fallback := os.Getenv("JOBS_FAILURE_LOG")
	if fallback == "" {
		fallback = defaultFailureLog
	}
	root.PersistentFlags().StringVar(&path, "file", fallback, "Path to the failure log")

	logFor := func() *jobs.FailureLog { return jobs.NewFailureLog(path) }

	root.AddCommand(listCmd(logFor), removeCmd(logFor), clearCmd(logFor))
	return root
}

func listCmd(logFor func() *jobs.FailureLog) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job in the failure log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := logFor().Load()
			if err != nil {
				return fmt.Errorf("failed to read failure log: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No failed jobs.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tPRIORITY\tRETRIES\tFAILED AT\tERROR")
			for _, e := range entries {
				failedAt := "-"
				if !e.FailedAt.IsZero() {
					failedAt = e.FailedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					e.ID, e.Kind, e.Priority, e.RetryCount, failedAt, e.Error)
			}
			return tw.Flush()
		},
	}
}

func removeCmd(logFor func() *jobs.FailureLog) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [job-id]",
		Short: "Remove one job from the failure log so it is not retried at startup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := logFor().Remove(args[0])
			if err != nil {
				return fmt.Errorf("failed to update failure log: %w", err)
			}
			if !removed {
				return fmt.Errorf("job %s not found in failure log", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s.\n", args[0])
			return nil
		},
	}
}

func clearCmd(logFor func() *jobs.FailureLog) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every job from the failure log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logFor().Clear(); err != nil {
				return fmt.Errorf("failed to clear failure log: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Failure log cleared.")
			return nil
		},
	}
}
