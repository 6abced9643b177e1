package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"crosslink/internal/linkstore"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var budget time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh priority then stale links within a time budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			report, err := eng.orchestrator.RunScheduledSync(cmd.Context(), budget)
			if err != nil {
				return err
			}
			if err := eng.store.RecordSyncRuns(cmd.Context(), report.AuditRows()); err != nil {
				return fmt.Errorf("record sync audit: %w", err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			rows := make([][]string, 0, len(report.Results))
			for _, res := range report.Results {
				rows = append(rows, []string{
					res.Task,
					yesNo(res.Success),
					strconv.Itoa(res.Count),
					(time.Duration(res.DurationMS) * time.Millisecond).String(),
					orDash(res.Error),
				})
			}
			out := cmd.OutOrStdout()
			writeTable(out, []string{"Task", "Success", "Count", "Duration", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft})
			fmt.Fprintf(out, "Run %s\n", report.RunID)
			return nil
		},
	}

	cmd.Flags().DurationVar(&budget, "budget", 0, "Wall-clock budget (defaults to sync.time_budget_seconds)")
	cmd.AddCommand(newSyncHistoryCommand(ctx))
	return cmd
}

func newSyncHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent scheduled sync results",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			runs, err := eng.store.ListSyncRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if runs == nil {
					runs = []linkstore.SyncRun{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sync runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					formatTime(run.CreatedAt),
					run.RunID,
					run.Task,
					yesNo(run.Success),
					strconv.Itoa(run.Count),
					orDash(run.Error),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"When", "Run", "Task", "Success", "Count", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to show")
	return cmd
}
