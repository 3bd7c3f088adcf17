// File: internal/portal/driver.go
package portal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials identifies the account the driver acts for.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

// BookRequest describes one user intent to book a slot.
type BookRequest struct {
	Date     time.Time
	Time     string
	Court    string
	Activity string
	DryRun   bool
}

// NotFoundError reports that no slot matched the requested time and court.
// It carries the open slots so the caller can offer nearby alternatives.
type NotFoundError struct {
	Requested string
	Court     string
	Available []Slot
}

func (e *NotFoundError) Error() string {
	if e.Court != "" {
		return fmt.Sprintf("no open slot at %s on a court matching %q", e.Requested, e.Court)
	}
	return fmt.Sprintf("no open slot at %s", e.Requested)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Alternatives returns the open slots sorted by proximity to the requested
// time. Slots whose time cannot be parsed sort last.
func (e *NotFoundError) Alternatives() []Slot {
	want, ok := ClockMinutes(e.Requested)
	out := make([]Slot, len(e.Available))
	copy(out, e.Available)
	if !ok {
		return out
	}
	distance := func(s Slot) int {
		m, ok := ClockMinutes(s.StartTime)
		if !ok {
			return 1 << 20
		}
		d := m - want
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.SliceStable(out, func(i, j int) bool { return distance(out[i]) < distance(out[j]) })
	return out
}

// Driver orchestrates the portal protocol state machine over a Substrate.
// It owns the Session for the lifetime of one command invocation: cookies
// are read once at start and written once after a successful login, with no
// partial writes in between.
type Driver struct {
	sub   Substrate
	store SessionStore
	creds Credentials
	log   *zap.Logger

	// verifyWindow is how recently a session must have been verified for
	// ensureAuthenticated to skip the verification fetch.
	verifyWindow time.Duration
	verifiedAt   time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver creates a driver bound to one substrate and one cookie store.
func NewDriver(sub Substrate, store SessionStore, creds Credentials, verifyWindow time.Duration, logger *zap.Logger) *Driver {
	return &Driver{
		sub:          sub,
		store:        store,
		creds:        creds,
		log:          logger.Named("driver"),
		verifyWindow: verifyWindow,
		now:          time.Now,
	}
}

// requireConfig gates every operation on the presence of a base URL and
// credentials.
func (d *Driver) requireConfig() error {
	if d.creds.BaseURL == "" || d.creds.Username == "" || d.creds.Password == "" {
		return fmt.Errorf("%w: base URL, username, and password are required", ErrConfiguration)
	}
	return nil
}

// ensureAuthenticated establishes a verified session: cached cookies are
// tried first, and a full login runs only when verification fails. On a
// fresh login the new cookies are persisted immediately.
func (d *Driver) ensureAuthenticated(ctx context.Context) error {
	if err := d.requireConfig(); err != nil {
		return err
	}

	if !d.verifiedAt.IsZero() && d.now().Sub(d.verifiedAt) < d.verifyWindow {
		return nil
	}

	if cached := d.store.Load(); len(cached) > 0 {
		d.sub.SetCookies(cached)
		ok, err := d.sub.VerifySession(ctx)
		if err != nil {
			return err
		}
		if ok {
			d.log.Debug("Cached session verified; skipping login.")
			d.verifiedAt = d.now()
			return nil
		}
		d.log.Info("Cached session is stale; re-authenticating.")
		if err := d.store.Clear(); err != nil {
			d.log.Warn("Failed to clear stale cookie store.", zap.Error(err))
		}
		d.sub.SetCookies(map[string]string{})
	}

	opID := uuid.New().String()
	d.log.Info("Logging in to portal.",
		zap.String("username", d.creds.Username), zap.String("op_id", opID))
	if err := d.sub.Authenticate(ctx, d.creds.Username, d.creds.Password); err != nil {
		return err
	}
	d.verifiedAt = d.now()

	if err := d.store.Save(d.sub.Cookies()); err != nil {
		// Not fatal for the command in flight; the next run just logs in
		// again.
		d.log.Warn("Failed to persist session cookies.", zap.Error(err))
	}
	return nil
}

// CheckAvailability runs authenticate -> grid -> date -> activity and
// returns the open slots.
func (d *Driver) CheckAvailability(ctx context.Context, date time.Time, activity string) (Availability, error) {
	if err := d.ensureAuthenticated(ctx); err != nil {
		return Availability{}, err
	}

	slots, err := d.navigateToGrid(ctx, date, activity)
	if err != nil {
		return Availability{}, err
	}

	d.log.Info("Availability check complete.",
		zap.String("date", date.Format(PortalDateFormat)),
		zap.String("activity", activity),
		zap.Int("open_slots", len(slots)))
	return Availability{Date: date, Activity: activity, Slots: slots}, nil
}

// Book executes the booking path. With DryRun set it stops after the slot
// has been selected server-side and reports what would have been saved,
// without issuing the save request.
func (d *Driver) Book(ctx context.Context, req BookRequest) (BookingOutcome, error) {
	if err := d.ensureAuthenticated(ctx); err != nil {
		return BookingOutcome{}, err
	}

	slots, err := d.navigateToGrid(ctx, req.Date, req.Activity)
	if err != nil {
		return BookingOutcome{}, err
	}

	slot, ok := MatchSlot(slots, req.Time, req.Court)
	if !ok {
		return BookingOutcome{}, &NotFoundError{Requested: req.Time, Court: req.Court, Available: slots}
	}

	d.log.Info("Selecting slot.",
		zap.String("court", slot.CourtLabel),
		zap.String("time", slot.StartTime),
		zap.String("raw_id", slot.RawID))
	if err := d.sub.SelectSlot(ctx, slot); err != nil {
		return BookingOutcome{}, err
	}

	if req.DryRun {
		d.log.Info("Dry run; stopping before save.")
		return BookingOutcome{
			Status: OutcomeSuccess,
			DryRun: true,
			Court:  slot.CourtLabel,
			Time:   slot.StartTime,
		}, nil
	}

	outcome, err := d.sub.ConfirmSave(ctx)
	if err != nil {
		return BookingOutcome{}, err
	}
	outcome.Court = slot.CourtLabel
	outcome.Time = slot.StartTime

	d.log.Info("Booking finished.",
		zap.String("status", string(outcome.Status)),
		zap.String("detail", outcome.Detail))
	return outcome, nil
}

// ListReservations returns the user's reservations. With includeOthers set,
// rows belonging to other household members are included as well.
func (d *Driver) ListReservations(ctx context.Context, includeOthers bool) ([]Reservation, error) {
	if err := d.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	all, err := d.sub.OpenReservations(ctx)
	if err != nil {
		return nil, err
	}
	if includeOthers {
		return all, nil
	}

	mine := make([]Reservation, 0, len(all))
	for _, r := range all {
		if r.Member == "" {
			mine = append(mine, r)
		}
	}
	return mine, nil
}

// Cancel cancels the member's own reservation at the given date and start
// time: open the listing, locate the matching row, click its cancel control,
// then confirm the dialog. Cancel tokens are minted per render, so the
// lookup and the click must happen against the same listing load; callers
// pass the reservation's coordinates, never a token from an earlier listing.
// With dryRun set it stops after the dialog has been opened, before the YES
// click.
func (d *Driver) Cancel(ctx context.Context, date time.Time, startTime string, dryRun bool) (CancelOutcome, error) {
	if err := d.ensureAuthenticated(ctx); err != nil {
		return CancelOutcome{}, err
	}

	rows, err := d.sub.OpenReservations(ctx)
	if err != nil {
		return CancelOutcome{}, err
	}
	target, ok := FindReservation(rows, date.Format(PortalDateFormat), startTime)
	if !ok {
		return CancelOutcome{}, fmt.Errorf("%w: no reservation of yours at %s on %s",
			ErrNotFound, startTime, date.Format(PortalDateFormat))
	}
	if target.CancelToken == "" {
		return CancelOutcome{}, &StateError{Step: "cancel", Expected: "a cancel control on the matched row"}
	}
	if err := d.sub.ClickCancel(ctx, target.CancelToken); err != nil {
		return CancelOutcome{}, err
	}

	if dryRun {
		d.log.Info("Dry run; stopping before cancel confirmation.",
			zap.String("token", target.CancelToken))
		return CancelOutcome{Status: OutcomeSuccess, DryRun: true,
			Message: "dry run: cancellation dialog opened but not confirmed"}, nil
	}

	outcome, err := d.sub.ConfirmCancel(ctx)
	if err != nil {
		return CancelOutcome{}, err
	}
	d.log.Info("Cancellation finished.", zap.String("status", string(outcome.Status)))
	return outcome, nil
}

// navigateToGrid performs the fixed grid -> date -> activity sequence. The
// two partial updates are always distinct steps in this order: changing the
// date does not change the activity server-side and vice versa, and the
// activity-filtered view depends on the date already being set.
func (d *Driver) navigateToGrid(ctx context.Context, date time.Time, activity string) ([]Slot, error) {
	if err := d.sub.OpenGrid(ctx); err != nil {
		return nil, err
	}
	if err := d.sub.NavigateDate(ctx, date); err != nil {
		return nil, err
	}
	return d.sub.NavigateActivity(ctx, activity)
}

// MatchSlot finds the open slot for the requested display time, honoring an
// optional court preference as a case-insensitive substring match on the
// court label.
func MatchSlot(slots []Slot, displayTime, courtPreference string) (Slot, bool) {
	want := NormalizeClock(displayTime)
	pref := strings.ToLower(strings.TrimSpace(courtPreference))
	for _, s := range slots {
		if NormalizeClock(s.StartTime) != want {
			continue
		}
		if pref != "" && !strings.Contains(strings.ToLower(s.CourtLabel), pref) {
			continue
		}
		return s, true
	}
	return Slot{}, false
}

// FindReservation locates the user's own reservation row for the given date
// and start time. TimeRange rows render as "start - end"; only the start is
// matched, normalized so "9:00 am" and "9:00AM" compare equal.
func FindReservation(rows []Reservation, date, startTime string) (Reservation, bool) {
	want := NormalizeClock(startTime)
	for _, r := range rows {
		if r.Member != "" || r.Date != date {
			continue
		}
		start, _, _ := strings.Cut(r.TimeRange, " - ")
		if NormalizeClock(start) == want {
			return r, true
		}
	}
	return Reservation{}, false
}
