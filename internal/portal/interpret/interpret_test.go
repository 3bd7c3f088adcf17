// File: internal/portal/interpret/interpret_test.go
package interpret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

func TestSaveErrorMarkersWinOverSuccess(t *testing.T) {
	// The portal has been seen rendering both an exception and a stale
	// success message into one response. Error wins.
	body := `<div>Reservation has been made</div>
<div>An error occurred while processing your request</div>`

	out := Save(body, true)
	assert.Equal(t, portal.OutcomeFailure, out.Status)
	assert.Contains(t, out.Detail, "an error occurred")
}

func TestSaveSuccessMarkers(t *testing.T) {
	for _, body := range []string{
		"Your reservation has been made.",
		"COURT SUCCESSFULLY RESERVED",
		"Confirmation number: SQ-2231",
	} {
		out := Save(body, true)
		assert.Equal(t, portal.OutcomeSuccess, out.Status, "body %q", body)
	}
}

func TestSaveSmallMarkerlessBodyIsPlausibleSuccess(t *testing.T) {
	out := Save(`<div class="messages"></div>`, true)
	assert.Equal(t, portal.OutcomeSuccess, out.Status)
	assert.NotEmpty(t, out.Detail, "a heuristic success must say it is one")
}

func TestSaveLargeAmbiguousBodyIsUncertain(t *testing.T) {
	// A full page re-render with no recognizable signal must never be
	// reported as a success.
	body := strings.Repeat("<div>schedule cell</div>", 200)
	out := Save(body, true)
	assert.Equal(t, portal.OutcomeUncertain, out.Status)
}

func TestSaveNonOKWithoutMarkersIsUncertain(t *testing.T) {
	out := Save("tiny", false)
	assert.Equal(t, portal.OutcomeUncertain, out.Status)
}

func TestCancelMarkers(t *testing.T) {
	assert.Equal(t, portal.OutcomeSuccess, Cancel("Your reservation has been cancelled.", true).Status)
	assert.Equal(t, portal.OutcomeSuccess, Cancel("Reservation canceled", true).Status)
	assert.Equal(t, portal.OutcomeFailure, Cancel("Unable to complete your request", true).Status)
}

func TestCancelShortRenderIsSuccess(t *testing.T) {
	out := Cancel(`<div class="messages"></div>`, true)
	assert.Equal(t, portal.OutcomeSuccess, out.Status)
}

func TestCancelLargeAmbiguousBodyIsUncertain(t *testing.T) {
	body := strings.Repeat("<tr><td>row</td></tr>", 100)
	out := Cancel(body, true)
	assert.Equal(t, portal.OutcomeUncertain, out.Status)
}
