package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crosslink/internal/linkstore"
)

func newLinkCommand(ctx *commandContext) *cobra.Command {
	linkCmd := &cobra.Command{
		Use:   "link",
		Short: "Inspect and correct cached links",
	}
	linkCmd.AddCommand(newLinkShowCommand(ctx))
	linkCmd.AddCommand(newLinkListCommand(ctx))
	linkCmd.AddCommand(newLinkSetCommand(ctx))
	return linkCmd
}

func newLinkShowCommand(ctx *commandContext) *cobra.Command {
	var season int

	cmd := &cobra.Command{
		Use:   "show <catalog-a-key>",
		Short: "Show the cached link for a title or season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			link, err := eng.lookup.GetSeasonLink(cmd.Context(), key, season)
			if err != nil {
				return err
			}
			if link == nil {
				return fmt.Errorf("no cached link for %s", key)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, link)
			}

			out := cmd.OutOrStdout()
			target := link.CatalogBKey
			if link.KnownMiss() {
				target = "(known miss)"
			}
			fmt.Fprintf(out, "%s season %d -> %s\n", link.CatalogAKey, link.Season, target)
			if link.SourceSeason != link.Season {
				fmt.Fprintf(out, "Showing season %d data (no season %d record yet)\n", link.SourceSeason, link.Season)
			}
			fmt.Fprintf(out, "Rating: %s  Rank: %s  Popularity: %s\n", formatFloat(link.Rating), formatInt(link.Rank), formatInt(link.Popularity))
			fmt.Fprintf(out, "Tags: %s\n", orDash(strings.Join(link.Tags, ", ")))
			fmt.Fprintf(out, "Cached: %s (fresh: %s)\n", formatTime(link.CachedAt), yesNo(link.Fresh))
			if link.Cast.Empty() {
				fmt.Fprintln(out, "Cast: -")
				return nil
			}
			var rows [][]string
			for _, bucket := range []struct {
				role    string
				entries []linkstore.CastEntry
			}{
				{linkstore.RoleMain, link.Cast.Main},
				{linkstore.RoleSupport, link.Cast.Support},
				{linkstore.RoleGuest, link.Cast.Guest},
			} {
				for _, entry := range bucket.entries {
					rows = append(rows, []string{bucket.role, entry.Name, orDash(entry.Character), orDash(entry.PersonKey)})
				}
			}
			writeTable(out, []string{"Role", "Name", "Character", "Person"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().IntVar(&season, "season", 1, "Season number")
	return cmd
}

func newLinkListCommand(ctx *commandContext) *cobra.Command {
	var staleOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached title links, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			filter := linkstore.LinkFilter{Limit: limit}
			if staleOnly {
				filter.NonEmptyKey = true
				filter.CachedBefore = time.Now().Add(-eng.cfg.StaleSweepAge())
			}
			links, err := eng.store.ListResolvedLinks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if links == nil {
					links = []linkstore.ResolvedLink{}
				}
				return writeJSON(cmd, links)
			}
			if len(links) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No links cached")
				return nil
			}
			rows := make([][]string, 0, len(links))
			for _, link := range links {
				target := link.CatalogBKey
				if link.KnownMiss() {
					target = "(miss)"
				}
				rows = append(rows, []string{
					link.CatalogAKey,
					target,
					formatFloat(link.Rating),
					strconv.Itoa(len(link.Tags)),
					yesNo(!link.Cast.Empty()),
					formatTime(link.CachedAt),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"Catalog A", "Catalog B", "Rating", "Tags", "Cast", "Cached"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&staleOnly, "stale", false, "Only links the next scheduled sync would refresh")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows (0 for all)")
	return cmd
}

func newLinkSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <catalog-a-key> <catalog-b-key>",
		Short: "Re-link a title by hand; enrichment refreshes on the next sync",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			aKey, bKey := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if err := eng.store.Relink(cmd.Context(), aKey, bKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s\n", aKey, bKey)
			return nil
		},
	}
}
