// File: cmd/reservations.go
package cmd

import (
	"github.com/spf13/cobra"
)

var reservationsAll bool

var reservationsCmd = &cobra.Command{
	Use:     "reservations",
	Aliases: []string{"list"},
	Short:   "List upcoming reservations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, cleanup, err := buildDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		rows, err := driver.ListReservations(cmd.Context(), reservationsAll)
		if err != nil {
			return err
		}
		return renderReservations(rows)
	},
}

func init() {
	reservationsCmd.Flags().BoolVar(&reservationsAll, "all", false, "include other household members' reservations")
	rootCmd.AddCommand(reservationsCmd)
}
