package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crosslink/internal/resolver"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var year int
	var native string

	cmd := &cobra.Command{
		Use:   "resolve <title>",
		Short: "Search the secondary catalog and show the match the resolver picks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return errors.New("title is required")
			}
			match := eng.resolver.Resolve(cmd.Context(), resolver.Query{Title: title, NativeTitle: native, Year: year})
			if ctx.jsonOutput() {
				return writeJSON(cmd, match)
			}
			out := cmd.OutOrStdout()
			if match == nil {
				fmt.Fprintf(out, "No match for %q\n", title)
				return nil
			}
			fmt.Fprintf(out, "%s (%d) -> %s [%s]\n", match.Candidate.Title, match.Candidate.Year, match.Candidate.Key, match.Reason)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year (0 disables the year gate)")
	cmd.Flags().StringVar(&native, "native", "", "Native-language title searched alongside the primary title")
	return cmd
}
