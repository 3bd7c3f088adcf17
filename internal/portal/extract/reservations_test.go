// File: internal/portal/extract/reservations_test.go
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reservationsPageHTML = `<html><body>
<form id="resForm" action="/web/club/my-reservations" method="post">
<input type="hidden" name="javax.faces.ViewState" value="vs-r1"/>
<div class="reservation-group">
  <h3>My Reservations</h3>
  <table><tbody>
  <tr>
    <td>Squash (Court 2|45 min)</td>
    <td>08/31/2026</td>
    <td>9:00 AM</td><td>9:45 AM</td>
    <td><a id="resForm:cancel_0" class="cancel-link" href="#">Cancel</a></td>
  </tr>
  <tr>
    <td>Swim Lane (50m|Lane 3)</td>
    <td>09/03/2026</td>
    <td>7:00 AM</td><td>7:30 AM</td>
    <td></td>
  </tr>
  </tbody></table>
</div>
<div class="reservation-group">
  <h3>Alice's Reservations</h3>
  <table><tbody>
  <tr>
    <td>Tennis (Court 5|60 min)</td>
    <td>09/01/2026</td>
    <td>1:00 PM</td><td>2:00 PM</td>
    <td><a id="resForm:cancel_7" onclick="confirmCancel()" href="#">Cancel</a></td>
  </tr>
  </tbody></table>
</div>
</form>
</body></html>`

func TestReservations(t *testing.T) {
	e := newExtractor()
	rows := e.Reservations(parseDoc(t, reservationsPageHTML))
	require.Len(t, rows, 3)

	own := rows[0]
	assert.Empty(t, own.Member)
	assert.Equal(t, "08/31/2026", own.Date)
	assert.Equal(t, "9:00 AM - 9:45 AM", own.TimeRange)
	assert.Equal(t, "Squash", own.Activity)
	assert.Equal(t, "Court 2", own.Court)
	assert.Equal(t, "resForm:cancel_0", own.CancelToken)

	// A row the portal rendered without a cancel control stays listed but
	// uncancellable.
	assert.Empty(t, rows[1].CancelToken)

	alice := rows[2]
	assert.Equal(t, "Alice", alice.Member)
	assert.Equal(t, "Tennis", alice.Activity)
	assert.Equal(t, "Court 5", alice.Court)
	assert.Equal(t, "resForm:cancel_7", alice.CancelToken)
}

func TestMemberFromHeader(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"My Reservations", ""},
		{"my reservations", ""},
		{"", ""},
		{"Alice's Reservations", "Alice"},
		{"Bob Jr. Reservations", "Bob Jr."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, memberFromHeader(tt.header), "header %q", tt.header)
	}
}

func TestParseActivityCell(t *testing.T) {
	tests := []struct {
		cell     string
		activity string
		court    string
	}{
		{"Squash (Court 2|45 min)", "Squash", "Court 2"},
		{"Squash (45 min|Court 2)", "Squash", "Court 2"},
		{"Open Swim (50m|warm pool)", "Open Swim", "50m"},
		{"plain text, no parens", "", ""},
	}
	for _, tt := range tests {
		activity, court := parseActivityCell(tt.cell)
		assert.Equal(t, tt.activity, activity, "cell %q", tt.cell)
		assert.Equal(t, tt.court, court, "cell %q", tt.cell)
	}
}
