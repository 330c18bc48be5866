package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/history-river/pkg/importer"
)

func newImportCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import dynasties and key events from the front-end data file",
		Example: `  history-river import --file data/historyData.ts
  history-river import --file data/historyData.ts --db-driver postgres --dsn postgres://...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			ds, err := importer.Parse(src)
			if err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := importer.Load(cmd.Context(), st, ds)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dynasties: %d created, %d skipped\n", report.DynastiesCreated, report.DynastiesSkipped)
			fmt.Fprintf(out, "events: %d created, %d skipped, %d linked to a dynasty\n",
				report.EventsCreated, report.EventsSkipped, report.EventsLinked)
			if report.Failed > 0 {
				fmt.Fprintf(out, "invalid records: %d\n", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "data/historyData.ts", "TypeScript data file with DYNASTIES and KEY_EVENTS")
	return cmd
}
