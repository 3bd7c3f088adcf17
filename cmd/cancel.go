// File: cmd/cancel.go
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cancelDate   string
	cancelTime   string
	cancelDryRun bool
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel one of your reservations.",
	Long: `Cancel finds your reservation matching --date and --time, opens its
cancellation dialog, and confirms it.

The portal renders no cancel control for other members' reservations or for
past ones; those cannot be cancelled here. With --dry-run the dialog is
opened but never confirmed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parsePortalDate(cancelDate)
		if err != nil {
			return err
		}

		driver, cleanup, err := buildDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		outcome, err := driver.Cancel(cmd.Context(), date, cancelTime, cancelDryRun)
		if err != nil {
			return err
		}
		return renderCancelOutcome(outcome)
	},
}

func init() {
	cancelCmd.Flags().StringVarP(&cancelDate, "date", "d", "today", "date of the reservation (MM/DD/YYYY, \"today\", or \"tomorrow\")")
	cancelCmd.Flags().StringVarP(&cancelTime, "time", "t", "", "start time of the reservation, e.g. \"9:00 AM\"")
	cancelCmd.Flags().BoolVar(&cancelDryRun, "dry-run", false, "open the cancellation dialog but never confirm it")
	cancelCmd.MarkFlagRequired("time")
	rootCmd.AddCommand(cancelCmd)
}
