package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/history"
	"github.com/skillctl/skillctl/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past review runs",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past runs, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")

		store, err := history.NewStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		runs, err := store.List(ctx, limit)
		if err != nil {
			presenter.Error(err, "Failed to list runs")
			os.Exit(1)
		}

		if len(runs) == 0 {
			presenter.Info("No runs recorded yet")
			return
		}

		presenter.Section("Run History")
		for _, run := range runs {
			presenter.Info(fmt.Sprintf("%s  %-10s  %d round(s)  %s → %s  %s",
				run.CreatedAt.Local().Format("2006-01-02 15:04"),
				run.Status, run.Rounds, run.Coder, run.Reviewer, run.Goal))
		}
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one run in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		store, err := history.NewStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		run, err := store.Get(ctx, args[0])
		if err != nil {
			presenter.Error(err, "Run not found")
			os.Exit(1)
		}

		presenter.Section(fmt.Sprintf("Run %s", run.ID))
		presenter.Info(fmt.Sprintf("Goal:     %s", run.Goal))
		presenter.Info(fmt.Sprintf("Skill:    %s", run.Skill))
		presenter.Info(fmt.Sprintf("Coder:    %s", run.Coder))
		presenter.Info(fmt.Sprintf("Reviewer: %s", run.Reviewer))
		presenter.Info(fmt.Sprintf("Status:   %s after %d round(s)", run.Status, run.Rounds))
		presenter.Info(fmt.Sprintf("Created:  %s", run.CreatedAt.Local().Format(time.RFC1123)))
		if run.ReportPath != "" {
			presenter.Info(fmt.Sprintf("Report:   %s", run.ReportPath))
		}
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("older-than-days")
		if days < 1 {
			presenter.Error(fmt.Errorf("older-than-days must be at least 1, got %d", days), "Invalid retention window")
			os.Exit(1)
		}

		store, err := history.NewStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		removed, err := store.Prune(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			presenter.Error(err, "Failed to prune runs")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Removed %d run(s) older than %d day(s)", removed, days))
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 for all)")
	historyPruneCmd.Flags().Int("older-than-days", 30, "Delete runs older than this many days")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}
