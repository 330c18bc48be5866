package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/history-river/pkg/store"
)

func newPinCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage podcast and book pins on the river",
	}
	cmd.AddCommand(newPinAddCommand(a))
	return cmd
}

func newPinAddCommand(a *app) *cobra.Command {
	var (
		jobID  string
		title  string
		year   int
		rating float64
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Place a pin on the river at a year",
		Example: `  history-river pin add --job-id ep-042 --title 长安十二时辰 --year 744 --rating 8.3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pin := &store.Pin{
				ID:    uuid.NewString(),
				JobID: jobID,
				Title: title,
				Year:  year,
			}
			if cmd.Flags().Changed("rating") {
				pin.DoubanRating = &rating
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.CreatePin(cmd.Context(), pin); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "podcast job id")
	cmd.Flags().StringVar(&title, "title", "", "pin title")
	cmd.Flags().IntVar(&year, "year", 0, "year on the river, negative for BCE")
	cmd.Flags().Float64Var(&rating, "rating", 0, "Douban rating, 0 to 10")
	_ = cmd.MarkFlagRequired("job-id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
