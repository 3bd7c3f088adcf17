// File: cmd/render.go
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

// All command output goes to stdout; logs go to stderr. Keeping the two
// streams separate is what makes --output json pipeable.
var outWriter io.Writer = os.Stdout

func renderJSON(v any) error {
	enc := json.NewEncoder(outWriter)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderAvailability(a portal.Availability) error {
	if outputFormat == "json" {
		return renderJSON(struct {
			Date     string              `json:"date"`
			Activity string              `json:"activity"`
			Times    map[string][]string `json:"times"`
		}{
			Date:     a.Date.Format(portal.PortalDateFormat),
			Activity: a.Activity,
			Times:    a.ByTime(),
		})
	}

	byTime := a.ByTime()
	if len(byTime) == 0 {
		fmt.Fprintf(outWriter, "No open slots for %s on %s.\n",
			a.Activity, a.Date.Format(portal.PortalDateFormat))
		return nil
	}

	times := make([]string, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool {
		mi, iok := portal.ClockMinutes(times[i])
		mj, jok := portal.ClockMinutes(times[j])
		if iok && jok {
			return mi < mj
		}
		return times[i] < times[j]
	})

	fmt.Fprintf(outWriter, "Open slots for %s on %s:\n\n",
		a.Activity, a.Date.Format(portal.PortalDateFormat))
	w := tabwriter.NewWriter(outWriter, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOURTS")
	for _, t := range times {
		courts := byTime[t]
		fmt.Fprintf(w, "%s\t%s\n", t, joinCourts(courts))
	}
	return w.Flush()
}

func joinCourts(courts []string) string {
	out := ""
	for i, c := range courts {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func renderBookingOutcome(o portal.BookingOutcome) error {
	if outputFormat == "json" {
		return renderJSON(o)
	}

	switch o.Status {
	case portal.OutcomeSuccess:
		if o.DryRun {
			fmt.Fprintf(outWriter, "Dry run: %s at %s is selectable. No reservation was made.\n", o.Court, o.Time)
			return nil
		}
		fmt.Fprintf(outWriter, "Booked %s at %s.\n", o.Court, o.Time)
		if o.Confirmation != "" {
			fmt.Fprintf(outWriter, "Portal confirmation: %s\n", o.Confirmation)
		}
	case portal.OutcomeFailure:
		fmt.Fprintf(outWriter, "Booking failed: %s\n", o.Detail)
	default:
		fmt.Fprintf(outWriter, "Booking outcome uncertain: %s\n", o.Detail)
	}
	return nil
}

func renderAlternatives(nf *portal.NotFoundError) {
	fmt.Fprintf(outWriter, "%s.\n", nf.Error())
	alts := nf.Alternatives()
	if len(alts) == 0 {
		fmt.Fprintln(outWriter, "Nothing else is open that day.")
		return
	}
	fmt.Fprintln(outWriter, "Closest open alternatives:")
	limit := len(alts)
	if limit > 5 {
		limit = 5
	}
	for _, s := range alts[:limit] {
		fmt.Fprintf(outWriter, "  %s  %s\n", s.StartTime, s.CourtLabel)
	}
}

func renderReservations(rows []portal.Reservation) error {
	if outputFormat == "json" {
		return renderJSON(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(outWriter, "No reservations.")
		return nil
	}

	w := tabwriter.NewWriter(outWriter, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tTIME\tACTIVITY\tCOURT\tMEMBER\tCANCELLABLE")
	for i, r := range rows {
		member := r.Member
		if member == "" {
			member = "me"
		}
		cancellable := "no"
		if r.CancelToken != "" {
			cancellable = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Date, r.TimeRange, r.Activity, r.Court, member, cancellable)
	}
	return w.Flush()
}

func renderCancelOutcome(o portal.CancelOutcome) error {
	if outputFormat == "json" {
		return renderJSON(o)
	}

	switch o.Status {
	case portal.OutcomeSuccess:
		if o.DryRun {
			fmt.Fprintln(outWriter, "Dry run: the cancellation dialog opened. Nothing was cancelled.")
			return nil
		}
		fmt.Fprintf(outWriter, "Cancelled: %s\n", o.Message)
	case portal.OutcomeFailure:
		fmt.Fprintf(outWriter, "Cancellation failed: %s\n", o.Message)
	default:
		fmt.Fprintf(outWriter, "Cancellation outcome uncertain: %s\n", o.Message)
	}
	return nil
}
