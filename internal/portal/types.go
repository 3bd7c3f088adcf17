// File: internal/portal/types.go
package portal

import (
	"sort"
	"time"
)

// PortalDateFormat is the display format the portal's date picker uses.
const PortalDateFormat = "01/02/2006"

// OutcomeStatus classifies the result of a mutating portal action. Uncertain
// is a first-class value: the portal sometimes gives no unambiguous signal,
// and saying so beats guessing.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailure   OutcomeStatus = "failure"
	OutcomeUncertain OutcomeStatus = "uncertain"
)

// Slot is one open, bookable unit on the grid for a given date and activity.
// Two slots with the same start time but different areas are distinct
// entities (same time, different court).
type Slot struct {
	AreaID     string
	CourtLabel string
	StartTime  string
	EndTime    string
	RawID      string
}

// Key identifies a slot stably across renders. The minted component id
// changes between page loads, so identity is time plus court instead.
func (s Slot) Key() string {
	return NormalizeClock(s.StartTime) + "|" + s.CourtLabel
}

// Reservation is one row of the reservations listing. Member is empty when
// the reservation belongs to the authenticated user; otherwise it names the
// household member it belongs to. CancelToken is empty when the portal
// rendered no cancel control for the row.
type Reservation struct {
	Date        string
	TimeRange   string
	Activity    string
	Court       string
	Member      string
	CancelToken string
}

// BookingOutcome is the tagged result of a booking attempt.
type BookingOutcome struct {
	Status       OutcomeStatus
	DryRun       bool
	Court        string
	Time         string
	Confirmation string
	Detail       string
}

// CancelOutcome is the tagged result of a cancellation attempt.
type CancelOutcome struct {
	Status  OutcomeStatus
	DryRun  bool
	Message string
}

// Availability is the result of a slot-availability check.
type Availability struct {
	Date     time.Time
	Activity string
	Slots    []Slot
}

// ByTime groups the open court labels by normalized start time. Duplicate
// court labels within one time are collapsed.
func (a Availability) ByTime() map[string][]string {
	grouped := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, s := range a.Slots {
		key := NormalizeClock(s.StartTime)
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][s.CourtLabel] {
			continue
		}
		seen[key][s.CourtLabel] = true
		grouped[key] = append(grouped[key], s.CourtLabel)
	}
	for _, courts := range grouped {
		sort.Strings(courts)
	}
	return grouped
}

// FormFieldSet is the externally observable state of a server-rendered form:
// hidden inputs plus selected dropdown values, keyed by field name.
type FormFieldSet map[string]string

// Clone returns an independent copy.
func (f FormFieldSet) Clone() FormFieldSet {
	out := make(FormFieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a new set with update's fields layered over f. Fields absent
// from a partial update are carried forward from the prior set; this must be
// a merge, never a replace, or fields not present in a given fragment are
// silently lost.
func (f FormFieldSet) Merge(update FormFieldSet) FormFieldSet {
	out := f.Clone()
	for k, v := range update {
		out[k] = v
	}
	return out
}

// ComponentRegistry maps logical operations to the widget ids the portal
// minted for the current page. Ids are regenerated per deployment and per
// session, so they are re-derived from every full page load rather than
// hardcoded. The Fallback flags record that structural resolution failed and
// a best-guess constant is in use.
type ComponentRegistry struct {
	FormID       string
	DatePicker   string
	ActivityMenu string
	SaveButton   string
	ReserveLink  string

	DatePickerFallback   bool
	ActivityMenuFallback bool
	SaveButtonFallback   bool
}
