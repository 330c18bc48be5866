package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/history-river/pkg/cache"
	"github.com/Sternrassler/history-river/pkg/importer"
	"github.com/Sternrassler/history-river/pkg/store"
	"github.com/Sternrassler/history-river/pkg/warmup"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the event summary cache",
	}
	cmd.AddCommand(
		newCacheKeyCommand(),
		newCacheInvalidateCommand(a),
		newCacheCleanupCommand(a),
		newCacheWarmCommand(a),
		newCacheListCommand(a),
		newCacheImportJSONCommand(a),
	)
	return cmd
}

func newCacheKeyCommand() *cobra.Command {
	var (
		year  int
		title string
	)
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key for a year and optional event title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key := cache.CacheKey{Title: title, Year: year}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, key.Source())
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "historical year, negative for BCE")
	cmd.Flags().StringVar(&title, "title", "", "event title (empty for a year overview)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func newCacheInvalidateCommand(a *app) *cobra.Command {
	var (
		year  int
		title string
	)
	cmd := &cobra.Command{
		Use:   "invalidate [key]",
		Short: "Soft-delete a cached summary so the next request regenerates it",
		Example: `  history-river cache invalidate 3f5c...e1
  history-river cache invalidate --year 755 --title 安史之乱
  history-river cache invalidate --year -2070`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byYear := cmd.Flags().Changed("year")
			var key string
			switch {
			case len(args) == 1 && byYear:
				return errors.New("pass either a key or --year, not both")
			case len(args) == 1:
				key = args[0]
			case byYear:
				key = cache.DeriveKey(title, year)
			default:
				return errors.New("a key or --year is required")
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.newManager(st, offlineGenerator{}, nil).Invalidate(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", key)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "historical year, negative for BCE")
	cmd.Flags().StringVar(&title, "title", "", "event title (empty for a year overview)")
	return cmd
}

func newCacheCleanupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete cached summaries last updated more than --days ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			days := a.cfg.Cache.CleanupDays
			removed, err := a.newManager(st, offlineGenerator{}, nil).Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().Int("days", 365, "maximum age in days; 0 removes everything")
	a.bindFlag("cache.cleanup_days", cmd.Flags().Lookup("days"))
	return cmd
}

func newCacheWarmCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Generate summaries for every stored event that lacks one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := a.newGenerator()
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			locker, closeLocker, err := a.newLocker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLocker()

			cfg := warmup.DefaultConfig()
			cfg.Concurrency = a.cfg.Warmup.Concurrency
			cfg.Delay = a.cfg.Warmup.Delay
			cfg.PageSize = a.cfg.Warmup.PageSize

			report, err := warmup.New(st, a.newManager(st, gen, locker), cfg).Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d events: %d fetched, %d already cached, %d failed in %s\n",
				report.Processed, report.Fetched, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().Int("concurrency", 1, "parallel generator requests")
	cmd.Flags().Duration("delay", 10*time.Second, "pause per worker after each generator call")
	a.bindFlag("warmup.concurrency", cmd.Flags().Lookup("concurrency"))
	a.bindFlag("warmup.delay", cmd.Flags().Lookup("delay"))
	return cmd
}

func newCacheListCommand(a *app) *cobra.Command {
	var (
		year           int
		title          string
		includeDeleted bool
		limit          int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached summaries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			find := &store.FindCacheEntry{IncludeDeleted: includeDeleted, Limit: limit}
			if cmd.Flags().Changed("year") {
				find.Year = &year
			}
			if cmd.Flags().Changed("title") {
				find.Title = &title
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := a.newManager(st, offlineGenerator{}, nil).List(cmd.Context(), find)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tYEAR\tTITLE\tRUNES\tDELETED\tUPDATED")
			for _, e := range entries {
				entryTitle := e.Title
				if entryTitle == "" {
					entryTitle = cache.YearOverviewTitle
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%t\t%s\n",
					shortKey(e.Key), e.Year, entryTitle, utf8.RuneCountInString(e.Content), e.IsDeleted,
					e.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only entries for this year")
	cmd.Flags().StringVar(&title, "title", "", "only entries with this title")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "include soft-deleted entries")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows (0 for all)")
	return cmd
}

func newCacheImportJSONCommand(a *app) *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import-json",
		Short: "Import summaries from the legacy JSON cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			entries, err := importer.ParseLegacyCache(data)
			if err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := importer.LoadLegacyCache(cmd.Context(), st, entries, importer.LegacyOptions{DryRun: dryRun})
			if err != nil {
				return err
			}

			verb := "migrated"
			if dryRun {
				verb = "would migrate"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries: %s %d, skipped %d, year overviews %d, errors %d\n",
				report.Total, verb, report.Migrated, report.Skipped, report.YearOverviews, report.Errors)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "event_cache.json", "legacy JSON cache file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify entries without writing")
	return cmd
}

// shortKey abbreviates a hex key for tabular output.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
