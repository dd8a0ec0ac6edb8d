package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/pantrysync/internal/mealplan"
)

type windowDay struct {
	Date string `json:"date"`
	Day  string `json:"day"`
}

// NewWindowCommand creates the window command.
func NewWindowCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:          "window",
		Short:        "Print the seven days of the meal-plan window",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := rootOpts.Now()
			if date != "" {
				t, err := time.ParseInLocation(mealplan.DateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
				today = t
			}

			window := mealplan.BuildWindow(today)
			days := make([]windowDay, len(window))
			for i, d := range window {
				days[i] = windowDay{Date: d.Date, Day: d.Day}
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(days)
			}
			for _, d := range days {
				fmt.Fprintf(out, "%s  %s\n", d.Date, d.Day)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "first day of the window (YYYY-MM-DD, default today)")
	return cmd
}
