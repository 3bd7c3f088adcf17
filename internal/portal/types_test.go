// File: internal/portal/types_test.go
package portal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFormFieldSetMergeDoesNotReplace(t *testing.T) {
	base := FormFieldSet{
		"p_auth":              "tok",
		"scheduleForm_SUBMIT": "1",
		"hiddenDate":          "08/30/2026",
	}

	merged := base.Merge(FormFieldSet{
		"hiddenDate": "09/02/2026",
		"newPanel":   "open",
	})

	want := FormFieldSet{
		"p_auth":              "tok",
		"scheduleForm_SUBMIT": "1",
		"hiddenDate":          "09/02/2026",
		"newPanel":            "open",
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Errorf("merged field set mismatch (-want +got):\n%s", diff)
	}

	// The receiver must be untouched: later steps re-merge from it.
	assert.Equal(t, "08/30/2026", base["hiddenDate"])
}

func TestFormFieldSetMergeNil(t *testing.T) {
	base := FormFieldSet{"a": "1"}
	merged := base.Merge(nil)
	assert.Equal(t, FormFieldSet{"a": "1"}, merged)
}

func TestAvailabilityByTime(t *testing.T) {
	a := Availability{
		Date:     time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
		Activity: "Squash",
		Slots: []Slot{
			{StartTime: "9:00 AM", CourtLabel: "Squash Court 2"},
			{StartTime: "09:00 am", CourtLabel: "Squash Court 1"},
			{StartTime: "9:00 AM", CourtLabel: "Squash Court 2"}, // duplicate render
			{StartTime: "10:30 AM", CourtLabel: "Squash Court 1"},
		},
	}

	byTime := a.ByTime()
	want := map[string][]string{
		"9:00AM":  {"Squash Court 1", "Squash Court 2"},
		"10:30AM": {"Squash Court 1"},
	}
	if diff := cmp.Diff(want, byTime); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}
}

func TestSlotKeyIgnoresMintedID(t *testing.T) {
	a := Slot{StartTime: "9:00 AM", CourtLabel: "Squash Court 2", RawID: "scheduleForm:j_idt10"}
	b := Slot{StartTime: "09:00 am", CourtLabel: "Squash Court 2", RawID: "scheduleForm:j_idt99"}
	assert.Equal(t, a.Key(), b.Key())

	c := Slot{StartTime: "9:00 AM", CourtLabel: "Squash Court 1"}
	assert.NotEqual(t, a.Key(), c.Key(), "same time on a different court is a different slot")
}
