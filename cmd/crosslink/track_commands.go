package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"crosslink/internal/catalog/tmdb"
	"crosslink/internal/linkstore"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "Maintain the watch list",
	}
	trackCmd.AddCommand(newTrackAddCommand(ctx))
	trackCmd.AddCommand(newTrackListCommand(ctx))
	trackCmd.AddCommand(newTrackSearchCommand(ctx))
	return trackCmd
}

func newTrackAddCommand(ctx *commandContext) *cobra.Command {
	var item linkstore.WatchItem

	cmd := &cobra.Command{
		Use:   "add <catalog-a-key>",
		Short: "Add or update a watch-list title (key format tv:<id> or movie:<id>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			key, err := tmdb.ParseKey(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(item.Title) == "" {
				return errors.New("--title is required")
			}
			item.CatalogAKey = key.String()
			previous, err := eng.store.GetWatchItem(cmd.Context(), item.CatalogAKey)
			if err != nil {
				return err
			}
			if err := eng.store.UpsertWatchItem(cmd.Context(), item); err != nil {
				return err
			}
			status := strings.ToLower(strings.TrimSpace(item.Status))
			if previous != nil && previous.Status != status {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %q: %s -> %s\n", item.CatalogAKey, item.Title, previous.Status, status)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s %q as %s\n", item.CatalogAKey, item.Title, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&item.Title, "title", "", "Primary title")
	cmd.Flags().StringVar(&item.NativeTitle, "native", "", "Native-language title")
	cmd.Flags().IntVar(&item.Year, "year", 0, "Release year")
	cmd.Flags().StringVar(&item.Status, "status", linkstore.StatusPlanned, "Watch status (watching, planned, completed, on_hold, dropped)")
	return cmd
}

func newTrackListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watch-list titles, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			items, err := eng.store.ListWatchItems(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if items == nil {
					items = []linkstore.WatchItem{}
				}
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Watch list is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				year := "-"
				if item.Year > 0 {
					year = strconv.Itoa(item.Year)
				}
				rows = append(rows, []string{item.CatalogAKey, item.Title, orDash(item.NativeTitle), year, item.Status})
			}
			writeTable(cmd.OutOrStdout(), []string{"Key", "Title", "Native", "Year", "Status"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

type searchRow struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

func newTrackSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search TMDB for titles to track",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			items, err := eng.tmdb.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			results := make([]searchRow, 0, len(items))
			for _, item := range items {
				results = append(results, searchRow{Key: item.Key.String(), Title: item.Title, Year: item.Year})
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results")
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				year := "-"
				if r.Year > 0 {
					year = strconv.Itoa(r.Year)
				}
				rows = append(rows, []string{r.Key, r.Title, year})
			}
			writeTable(cmd.OutOrStdout(), []string{"Key", "Title", "Year"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight})
			return nil
		},
	}
}
