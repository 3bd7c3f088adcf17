// File: cmd/book.go
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

var (
	bookDate     string
	bookTime     string
	bookCourt    string
	bookActivity string
	bookDryRun   bool
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Book a slot at the given date and time.",
	Long: `Book walks the full reservation sequence: navigate the grid to the
date and activity, find the slot matching the requested time (and court, if
one is preferred), select it, and confirm the save.

With --dry-run the sequence stops after selecting the slot: the portal opens
its confirmation panel but the save is never submitted, so no reservation is
made and nothing needs to be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parsePortalDate(bookDate)
		if err != nil {
			return err
		}
		activity, err := resolveActivity(bookActivity)
		if err != nil {
			return err
		}
		court := bookCourt
		if court == "" {
			court = appCfg.Portal.DefaultCourt
		}

		driver, cleanup, err := buildDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		outcome, err := driver.Book(cmd.Context(), portal.BookRequest{
			Date:     date,
			Time:     bookTime,
			Court:    court,
			Activity: activity,
			DryRun:   bookDryRun,
		})
		if err != nil {
			var nf *portal.NotFoundError
			if errors.As(err, &nf) {
				renderAlternatives(nf)
				return err
			}
			return err
		}
		return renderBookingOutcome(outcome)
	},
}

func init() {
	bookCmd.Flags().StringVarP(&bookDate, "date", "d", "today", "date to book (MM/DD/YYYY, \"today\", or \"tomorrow\")")
	bookCmd.Flags().StringVarP(&bookTime, "time", "t", "", "start time of the slot, e.g. \"9:00 AM\"")
	bookCmd.Flags().StringVar(&bookCourt, "court", "", "preferred court (substring match); first open court wins when empty")
	bookCmd.Flags().StringVarP(&bookActivity, "activity", "a", "", "activity (defaults to portal.default_activity)")
	bookCmd.Flags().BoolVar(&bookDryRun, "dry-run", false, "select the slot but never submit the save")
	bookCmd.MarkFlagRequired("time")
	rootCmd.AddCommand(bookCmd)
}
