// File: internal/portal/extract/grid_test.go
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridFragment = `<div id="grid">
<div class="schedule-cell open" id="scheduleForm:slot_9_2" data-slot-time="9:00 AM" data-end-time="9:45 AM" data-area-id="173"><span class="court-name">Squash Court 2</span></div>
<div class="schedule-cell reserved" data-slot-time="9:00 AM" data-area-id="171"><span class="court-name">Squash Court 1</span></div>
<div class="schedule-cell restricted" data-slot-time="9:45 AM" data-area-id="172"><span class="court-name">Squash Court 4</span></div>
<div class="schedule-cell blocked" data-slot-time="10:00 AM" data-area-id="173"><span class="court-name">Squash Court 2</span></div>
<div class="schedule-cell open" id="scheduleForm:slot_10_3" data-slot-time="10:30 AM" data-end-time="11:15 AM" data-area-id="175" data-court="Squash Court 3"></div>
<div class="schedule-cell open" id="scheduleForm:slot_11_1" data-slot-time="11:00 AM" data-end-time="11:45 AM" data-area-id="176"><span class="court-name">Squash Court 1</span></div>
</div>`

func TestSlotsStrictScan(t *testing.T) {
	e := newExtractor()
	doc, err := ParseFragment(gridFragment)
	require.NoError(t, err)

	slots := e.Slots(doc)
	require.Len(t, slots, 3, "reserved, restricted, and blocked cells are not bookable")

	assert.Equal(t, "scheduleForm:slot_9_2", slots[0].RawID)
	assert.Equal(t, "Squash Court 2", slots[0].CourtLabel)
	assert.Equal(t, "9:00 AM", slots[0].StartTime)
	assert.Equal(t, "9:45 AM", slots[0].EndTime)
	assert.Equal(t, "173", slots[0].AreaID)

	// data-court takes precedence over the inner span.
	assert.Equal(t, "Squash Court 3", slots[1].CourtLabel)
	assert.Equal(t, "Squash Court 1", slots[2].CourtLabel)
}

func TestSlotsRelaxedRescan(t *testing.T) {
	// A grid where the marker classes drifted: cells carry both "reserved"
	// and "open". The strict pass drops them all; the relaxed re-scan must
	// recover the ones that also look open.
	fragment := `<div id="grid">
<div class="cell reserved open" id="s1" data-slot-time="9:00 AM" data-area-id="1"><span class="court-name">Court 1</span></div>
<div class="cell reserved open" id="s2" data-slot-time="9:45 AM" data-area-id="2"><span class="court-name">Court 2</span></div>
<div class="cell reserved" data-slot-time="10:30 AM" data-area-id="3"><span class="court-name">Court 3</span></div>
</div>`

	e := newExtractor()
	doc, err := ParseFragment(fragment)
	require.NoError(t, err)

	slots := e.Slots(doc)
	require.Len(t, slots, 2)
	assert.Equal(t, "s1", slots[0].RawID)
	assert.Equal(t, "s2", slots[1].RawID)
}

func TestSlotsEmptyGrid(t *testing.T) {
	e := newExtractor()
	doc, err := ParseFragment(`<div id="grid"><p>The schedule is full.</p></div>`)
	require.NoError(t, err)
	assert.Empty(t, e.Slots(doc))
}
