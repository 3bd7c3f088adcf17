// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/courtbook/internal/observability"
	"github.com/xkilldash9x/courtbook/internal/portal"
	"github.com/xkilldash9x/courtbook/internal/watch"
)

var (
	watchDates    []string
	watchActivity string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch dates for slots opening up.",
	Long: `Watch polls the booking grid for the given dates and prints new
slots as they open, typically when someone else cancels. Polling is
rate-limited; watching more dates does not mean hitting the portal harder.
Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		activity, err := resolveActivity(watchActivity)
		if err != nil {
			return err
		}
		if len(watchDates) == 0 {
			watchDates = []string{"today"}
		}
		dates := make([]time.Time, 0, len(watchDates))
		for _, d := range watchDates {
			parsed, err := parsePortalDate(d)
			if err != nil {
				return err
			}
			dates = append(dates, parsed)
		}

		driver, cleanup, err := buildDriver(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watcher := watch.New(driver, appCfg.Watch.Interval, appCfg.Watch.MaxChecksPerMinute,
			observability.GetLogger())

		events := make(chan watch.Event)
		done := make(chan error, 1)
		go func() {
			done <- watcher.Run(ctx, dates, activity, events)
		}()

		fmt.Fprintf(outWriter, "Watching %d date(s) for %s. Ctrl-C to stop.\n", len(dates), activity)
		for {
			select {
			case ev := <-events:
				for _, s := range ev.Opened {
					fmt.Fprintf(outWriter, "[%s] OPENED %s  %s  %s\n",
						ev.CheckedAt.Format("15:04:05"),
						ev.Date.Format(portal.PortalDateFormat),
						s.StartTime, s.CourtLabel)
				}
			case err := <-done:
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringArrayVarP(&watchDates, "date", "d", nil, "date to watch, repeatable (MM/DD/YYYY, \"today\", or \"tomorrow\")")
	watchCmd.Flags().StringVarP(&watchActivity, "activity", "a", "", "activity (defaults to portal.default_activity)")
	rootCmd.AddCommand(watchCmd)
}
