// File: cmd/availability.go
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	availabilityDate     string
	availabilityActivity string
)

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show open slots for a date and activity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parsePortalDate(availabilityDate)
		if err != nil {
			return err
		}
		activity, err := resolveActivity(availabilityActivity)
		if err != nil {
			return err
		}

		driver, cleanup, err := buildDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		avail, err := driver.CheckAvailability(cmd.Context(), date, activity)
		if err != nil {
			return err
		}
		return renderAvailability(avail)
	},
}

func init() {
	availabilityCmd.Flags().StringVarP(&availabilityDate, "date", "d", "today", "date to check (MM/DD/YYYY, \"today\", or \"tomorrow\")")
	availabilityCmd.Flags().StringVarP(&availabilityActivity, "activity", "a", "", "activity to filter by (defaults to portal.default_activity)")
	rootCmd.AddCommand(availabilityCmd)
}
