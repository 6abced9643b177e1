package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"crosslink/internal/syncer"
)

func newWarmCommand(ctx *commandContext) *cobra.Command {
	var opts syncer.WarmOptions

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Resolve and enrich every tracked title, then cache referenced people",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			summary, err := eng.orchestrator.Warm(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}

			out := cmd.OutOrStdout()
			var rows [][]string
			for _, phase := range []*syncer.PhaseSummary{summary.Titles, summary.People} {
				if phase == nil {
					continue
				}
				rows = append(rows, []string{
					phase.Phase,
					strconv.Itoa(phase.Candidates),
					strconv.Itoa(phase.Total),
					strconv.Itoa(phase.Succeeded),
					strconv.Itoa(phase.Failed),
					strconv.Itoa(phase.Misses),
					strconv.Itoa(phase.Skipped),
				})
			}
			writeTable(out, []string{"Phase", "Candidates", "Processed", "Succeeded", "Failed", "Misses", "Skipped"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight})
			fmt.Fprintf(out, "Run %s finished in %s (%d person keys seen)\n", summary.RunID, summary.Duration.Round(time.Millisecond), summary.PersonKeysSeen)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Phase1Only, "phase1-only", false, "Only resolve and enrich titles")
	cmd.Flags().BoolVar(&opts.Phase2Only, "phase2-only", false, "Only refresh person profiles")
	cmd.MarkFlagsMutuallyExclusive("phase1-only", "phase2-only")
	return cmd
}
