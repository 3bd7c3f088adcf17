// File: internal/portal/substrate.go
package portal

import (
	"context"
	"time"
)

// Substrate executes the logical portal operations on some concrete
// mechanism. Two implementations exist: a raw HTTP client that replays the
// portal's AJAX partial postbacks itself (httpdrv), and a driven Chrome
// instance that triggers the same framework behaviors in-page (browserdrv).
// The Driver is written entirely against this contract and must not branch
// on which implementation it holds.
//
// Operations are strictly sequential within one command: each step depends
// on the view-state and form-field output the substrate accumulated in the
// previous step. A Substrate is not safe for concurrent use.
type Substrate interface {
	// Authenticate runs the full login sequence and returns only once a
	// positive logged-in marker has been observed. Absence of an error
	// element is not sufficient.
	Authenticate(ctx context.Context, username, password string) error

	// VerifySession performs a lightweight fetch of an authenticated-only
	// page and reports whether the positive marker is present.
	VerifySession(ctx context.Context) (bool, error)

	// OpenGrid loads the booking grid page and primes view state, form
	// fields, and the component registry for the partial updates to follow.
	OpenGrid(ctx context.Context) error

	// NavigateDate simulates the date picker's change event.
	NavigateDate(ctx context.Context, date time.Time) error

	// NavigateActivity simulates the activity dropdown's change event and
	// returns the open slots parsed from the re-rendered grid. Date is
	// always navigated before activity; the activity-filtered view depends
	// on the date already being set.
	NavigateActivity(ctx context.Context, activity string) ([]Slot, error)

	// SelectSlot simulates a click on the given grid cell, which opens the
	// reservation confirmation panel server-side.
	SelectSlot(ctx context.Context, slot Slot) error

	// ConfirmSave submits the save action for the previously selected slot.
	ConfirmSave(ctx context.Context) (BookingOutcome, error)

	// OpenReservations loads the reservations page and returns all rows,
	// including other household members' reservations.
	OpenReservations(ctx context.Context) ([]Reservation, error)

	// ClickCancel simulates a click on the cancel control identified by
	// token, which opens the confirmation dialog server-side.
	ClickCancel(ctx context.Context, token string) error

	// ConfirmCancel locates and clicks the dialog's YES control.
	ConfirmCancel(ctx context.Context) (CancelOutcome, error)

	// Cookies exposes the current session cookies for persistence.
	Cookies() map[string]string

	// SetCookies seeds the substrate with previously persisted cookies.
	SetCookies(cookies map[string]string)
}

// SessionStore is the persistence contract the driver consumes. The
// concrete implementation (internal/session) owns file layout and expiry.
type SessionStore interface {
	Load() map[string]string
	Save(cookies map[string]string) error
	Clear() error
}
