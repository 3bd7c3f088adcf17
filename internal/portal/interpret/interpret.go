// File: internal/portal/interpret/interpret.go
//
// Package interpret classifies the portal's opaque post-action responses.
// The portal has no machine-readable status for its AJAX operations, so the
// outcome of a save or a cancel has to be read from textual and structural
// signals. The classifier is deliberately narrow and three-valued: a false
// "success" is the most expensive mistake this program can make (the user
// walks away believing a court is booked), so anything ambiguous is
// reported as uncertain rather than guessed at.
package interpret

import (
	"strings"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

// Explicit signals, checked in precedence order: errors first, then
// success, then size heuristics.
var (
	errorMarkers = []string{
		"exception",
		"an error occurred",
		"unable to complete",
		"not available",
		"already reserved",
	}

	saveSuccessMarkers = []string{
		"reservation has been made",
		"successfully reserved",
		"confirmation number",
	}

	cancelMarkers = []string{
		"has been canceled",
		"has been cancelled",
		"reservation canceled",
		"reservation cancelled",
	}
)

// plausibleSaveSize is the body length below which a marker-free 200
// response is still credible as a success: the portal's stripped-down
// post-save render is tiny, while error and re-render pages are not.
const plausibleSaveSize = 2048

// shortCancelSize: very small confirm-cancel responses correlate with the
// portal's bare "done" render.
const shortCancelSize = 600

// Save classifies the response to a booking save action. statusOK reports
// whether the transport layer saw a 2xx; the body is the rendered content.
func Save(body string, statusOK bool) portal.BookingOutcome {
	lower := strings.ToLower(body)

	// Error markers take precedence: HTTP 200 with an exception rendered
	// into the page is still a failure.
	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return portal.BookingOutcome{
				Status: portal.OutcomeFailure,
				Detail: "portal reported: " + m,
			}
		}
	}

	for _, m := range saveSuccessMarkers {
		if strings.Contains(lower, m) {
			return portal.BookingOutcome{
				Status:       portal.OutcomeSuccess,
				Confirmation: m,
			}
		}
	}

	if statusOK && len(body) <= plausibleSaveSize {
		return portal.BookingOutcome{
			Status: portal.OutcomeSuccess,
			Detail: "no explicit confirmation, but response is a plausible post-save render",
		}
	}

	return portal.BookingOutcome{
		Status: portal.OutcomeUncertain,
		Detail: "no recognizable success or error signal; verify the reservation manually",
	}
}

// Cancel classifies the response to a cancel confirmation.
func Cancel(body string, statusOK bool) portal.CancelOutcome {
	lower := strings.ToLower(body)

	for _, m := range errorMarkers {
		if strings.Contains(lower, m) {
			return portal.CancelOutcome{
				Status:  portal.OutcomeFailure,
				Message: "portal reported: " + m,
			}
		}
	}

	for _, m := range cancelMarkers {
		if strings.Contains(lower, m) {
			return portal.CancelOutcome{
				Status:  portal.OutcomeSuccess,
				Message: "cancellation confirmed",
			}
		}
	}

	if statusOK && len(body) < shortCancelSize {
		return portal.CancelOutcome{
			Status:  portal.OutcomeSuccess,
			Message: "cancellation accepted (short confirmation render)",
		}
	}

	return portal.CancelOutcome{
		Status:  portal.OutcomeUncertain,
		Message: "uncertain - please verify the reservation list manually",
	}
}
