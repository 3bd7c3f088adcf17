// File: internal/portal/httpdrv/substrate_test.go
package httpdrv

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courtbook/internal/config"
	"github.com/xkilldash9x/courtbook/internal/portal"
)

const (
	testUser     = "member@example.com"
	testPassword = "hunter2"
)

// fakePortal is an in-process stand-in for the reservation site: a login
// flow with a redirect hop, a stateful view-state token, and canned
// partial-response payloads dispatched on the simulated event source.
type fakePortal struct {
	t *testing.T

	// lastPostback records the form values of the most recent partial
	// postback for assertions.
	lastPostback map[string]string

	loginAttempts int
	failLogin     bool
}

func (f *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /web/club/login", f.loginPage)
	mux.HandleFunc("POST /web/club/login", f.loginSubmit)
	mux.HandleFunc("GET /web/club/home", f.homePage)
	mux.HandleFunc("GET /web/club/schedule", f.gridPage)
	mux.HandleFunc("POST /web/club/schedule", f.gridPostback)
	mux.HandleFunc("GET /web/club/my-reservations", f.reservationsPage)
	mux.HandleFunc("POST /web/club/my-reservations", f.reservationsPostback)
	return mux
}

func (f *fakePortal) loginPage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html><body>
<form action="/web/club/login" method="post">
  <input type="hidden" name="p_auth" value="tok123"/>
  <input type="hidden" name="formDate" value="1700000000"/>
  <input type="text" name="_58_login" value=""/>
  <input type="password" name="_58_password"/>
  <button type="submit">Sign In</button>
</form>
</body></html>`)
}

func (f *fakePortal) loginSubmit(w http.ResponseWriter, r *http.Request) {
	f.loginAttempts++
	require.NoError(f.t, r.ParseForm())

	assert.Equal(f.t, "tok123", r.PostFormValue("p_auth"), "hidden auth token must be echoed back")
	assert.Equal(f.t, testUser, r.PostFormValue("_58_login"))

	wantPassword := base64.StdEncoding.EncodeToString([]byte(testPassword))
	if f.failLogin || r.PostFormValue("_58_password") != wantPassword {
		fmt.Fprint(w, `<html><body>
<div class="portlet-msg-error">Authentication failed. Please try again.</div>
</body></html>`)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "session-xyz"})
	http.SetCookie(w, &http.Cookie{Name: "LFR_SESSION_STATE", Value: "state-1"})
	http.Redirect(w, r, "/web/club/home", http.StatusFound)
}

func (f *fakePortal) homePage(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<html><body><a href="/c/portal/logout">Sign Out</a></body></html>`)
}

func (f *fakePortal) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "session-xyz" {
		// Anonymous render: no positive marker anywhere.
		fmt.Fprint(w, `<html><body><a href="/web/club/login">Sign In</a></body></html>`)
		return false
	}
	return true
}

func (f *fakePortal) gridPage(w http.ResponseWriter, r *http.Request) {
	if !f.requireSession(w, r) {
		return
	}
	fmt.Fprint(w, `<html><body>
<form id="scheduleForm" action="/web/club/schedule" method="post">
  <input type="hidden" name="javax.faces.ViewState" value="vs-1"/>
  <input type="hidden" name="scheduleForm_SUBMIT" value="1"/>
  <input id="scheduleForm:j_idt20_input" type="hidden" name="scheduleForm:j_idt20_input" value="08/30/2026"/>
  <input id="scheduleForm:j_idt25_input" type="hidden" name="scheduleForm:j_idt25_input" value="Squash"/>
  <input id="scheduleForm:j_idt25_focus" type="hidden" name="scheduleForm:j_idt25_focus" value=""/>
  <a id="scheduleForm:openRes" href="#" onclick="openReservationScreen()">My Schedule</a>
</form>
<a href="/c/portal/logout">Sign Out</a>
</body></html>`)
}

func (f *fakePortal) recordPostback(r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.lastPostback = map[string]string{}
	for k := range r.PostForm {
		f.lastPostback[k] = r.PostFormValue(k)
	}
	assert.Equal(f.t, "partial/ajax", r.Header.Get("Faces-Request"))
	assert.Equal(f.t, "true", r.PostFormValue("javax.faces.partial.ajax"))
}

func partialXML(viewState string, fragments map[string]string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><partial-response><changes>`
	body += `<update id="javax.faces.ViewState"><![CDATA[` + viewState + `]]></update>`
	for id, frag := range fragments {
		body += `<update id="` + id + `"><![CDATA[` + frag + `]]></update>`
	}
	return body + `</changes></partial-response>`
}

func (f *fakePortal) gridPostback(w http.ResponseWriter, r *http.Request) {
	f.recordPostback(r)
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")

	switch source := r.PostFormValue("javax.faces.source"); source {
	case "scheduleForm:j_idt20": // date picker
		assert.Equal(f.t, "dateSelect", r.PostFormValue("javax.faces.behavior.event"))
		fmt.Fprint(w, partialXML("vs-2", map[string]string{
			"scheduleForm:grid": `<div id="grid">loading</div>`,
		}))

	case "scheduleForm:j_idt25": // activity menu
		assert.Equal(f.t, "change", r.PostFormValue("javax.faces.behavior.event"))
		assert.Equal(f.t, "vs-2", r.PostFormValue("javax.faces.ViewState"),
			"token from the date postback must be carried into the activity postback")
		fmt.Fprint(w, partialXML("vs-3", map[string]string{
			"scheduleForm:grid": `<div id="grid">
<div class="schedule-cell open" id="scheduleForm:slot_9_2" data-slot-time="9:00 AM" data-end-time="9:45 AM" data-area-id="173"><span class="court-name">Squash Court 2</span></div>
<div class="schedule-cell reserved" data-slot-time="10:00 AM" data-area-id="174"><span class="court-name">Squash Court 1</span></div>
<div class="schedule-cell open" id="scheduleForm:slot_10_3" data-slot-time="10:30 AM" data-end-time="11:15 AM" data-area-id="175"><span class="court-name">Squash Court 3</span></div>
<div class="schedule-cell open" id="scheduleForm:slot_11_1" data-slot-time="11:00 AM" data-end-time="11:45 AM" data-area-id="176"><span class="court-name">Squash Court 1</span></div>
</div>`,
		}))

	case "scheduleForm:slot_9_2":
		fmt.Fprint(w, partialXML("vs-4", map[string]string{
			"scheduleForm:reservationPanel": `<div id="panel">
<input type="hidden" name="scheduleForm:reservationPanel_active" value="true"/>
<button id="scheduleForm:reservationPanel:j_idt99" type="button">Save Reservation</button>
</div>`,
		}))

	case "scheduleForm:reservationPanel:j_idt99":
		assert.Equal(f.t, "true", r.PostFormValue("scheduleForm:reservationPanel_active"),
			"fields rendered into the confirmation panel must be carried into the save postback")
		fmt.Fprint(w, partialXML("vs-5", map[string]string{
			"scheduleForm:messages": `<div>Your reservation has been made. See you on court.</div>`,
		}))

	default:
		f.t.Errorf("unexpected postback source %q", source)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakePortal) reservationsPage(w http.ResponseWriter, r *http.Request) {
	if !f.requireSession(w, r) {
		return
	}
	fmt.Fprint(w, `<html><body>
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
  </tbody></table>
</div>
<div class="reservation-group">
  <h3>Alice's Reservations</h3>
  <table><tbody>
  <tr>
    <td>Tennis (Court 5|60 min)</td>
    <td>09/01/2026</td>
    <td>1:00 PM</td><td>2:00 PM</td>
    <td></td>
  </tr>
  </tbody></table>
</div>
</form>
<a href="/c/portal/logout">Sign Out</a>
</body></html>`)
}

func (f *fakePortal) reservationsPostback(w http.ResponseWriter, r *http.Request) {
	f.recordPostback(r)
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")

	switch source := r.PostFormValue("javax.faces.source"); source {
	case "resForm:cancel_0":
		fmt.Fprint(w, partialXML("vs-r2", map[string]string{
			"resForm:confirmDialog": `<div id="dlg" class="ui-confirm-dialog">
<span>Cancel this reservation?</span>
<a id="resForm:confirmYes" class="ui-button btn-danger">Yes</a>
<a id="resForm:confirmNo" class="ui-button">No</a>
</div>`,
		}))

	case "resForm:confirmYes":
		fmt.Fprint(w, partialXML("vs-r3", map[string]string{
			"resForm:messages": `<div>Your reservation has been cancelled.</div>`,
		}))

	default:
		f.t.Errorf("unexpected postback source %q", source)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestSubstrate(t *testing.T) (*Substrate, *fakePortal) {
	t.Helper()
	fake := &fakePortal{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := config.NetworkConfig{
		RequestTimeout: 10 * time.Second,
		UserAgent:      "courtbook-test",
	}
	sub, err := New(srv.URL, cfg, zap.NewNop())
	require.NoError(t, err)
	return sub, fake
}

func login(t *testing.T, sub *Substrate) {
	t.Helper()
	require.NoError(t, sub.Authenticate(context.Background(), testUser, testPassword))
}

func TestAuthenticate(t *testing.T) {
	sub, fake := newTestSubstrate(t)

	err := sub.Authenticate(context.Background(), testUser, testPassword)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.loginAttempts)

	// Cookies from the post-submit Set-Cookie headers must be absorbed.
	cookies := sub.Cookies()
	assert.Equal(t, "session-xyz", cookies["JSESSIONID"])
	assert.Equal(t, "state-1", cookies["LFR_SESSION_STATE"])
}

func TestAuthenticateSurfacesPortalError(t *testing.T) {
	sub, fake := newTestSubstrate(t)
	fake.failLogin = true

	err := sub.Authenticate(context.Background(), testUser, testPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrAuthentication)
	assert.Contains(t, err.Error(), "Authentication failed",
		"the portal's own error text must be surfaced verbatim")
}

func TestVerifySession(t *testing.T) {
	sub, _ := newTestSubstrate(t)

	// Without cookies the grid renders anonymously: no positive marker.
	ok, err := sub.VerifySession(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	login(t, sub)
	ok, err = sub.VerifySession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySessionWithSeededCookies(t *testing.T) {
	sub, fake := newTestSubstrate(t)
	sub.SetCookies(map[string]string{"JSESSIONID": "session-xyz"})

	ok, err := sub.VerifySession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, fake.loginAttempts, "a seeded live session must not trigger a login")
}

func TestBookingFlow(t *testing.T) {
	sub, fake := newTestSubstrate(t)
	login(t, sub)

	ctx := context.Background()
	require.NoError(t, sub.OpenGrid(ctx))

	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sub.NavigateDate(ctx, date))
	assert.Equal(t, "09/02/2026", fake.lastPostback["scheduleForm:j_idt20_input"])
	assert.Equal(t, "vs-1", fake.lastPostback["javax.faces.ViewState"])
	assert.Equal(t, "allCourts", fake.lastPostback["schedulerDisplayMode"],
		"the full-view override must reach every postback")

	slots, err := sub.NavigateActivity(ctx, "Squash")
	require.NoError(t, err)
	require.Len(t, slots, 3, "the reserved cell must be filtered out")
	assert.Equal(t, "Squash Court 2", slots[0].CourtLabel)
	assert.Equal(t, "9:00 AM", slots[0].StartTime)
	assert.Equal(t, "scheduleForm:slot_9_2", slots[0].RawID)

	require.NoError(t, sub.SelectSlot(ctx, slots[0]))

	outcome, err := sub.ConfirmSave(ctx)
	require.NoError(t, err)
	assert.Equal(t, portal.OutcomeSuccess, outcome.Status)
	// The save postback's source must be the button id minted into the
	// confirmation panel, not a guessed constant.
	assert.Equal(t, "scheduleForm:reservationPanel:j_idt99", fake.lastPostback["javax.faces.source"])
	assert.Equal(t, "vs-4", fake.lastPostback["javax.faces.ViewState"])
}

func TestSelectSlotWithoutID(t *testing.T) {
	sub, _ := newTestSubstrate(t)
	login(t, sub)
	require.NoError(t, sub.OpenGrid(context.Background()))

	err := sub.SelectSlot(context.Background(), portal.Slot{CourtLabel: "Squash Court 2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrProtocolState)
}

func TestPostbackWithoutViewState(t *testing.T) {
	sub, _ := newTestSubstrate(t)
	login(t, sub)

	// Skipping OpenGrid means no token was ever primed.
	err := sub.NavigateDate(context.Background(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrProtocolState)
}

func TestCancelFlow(t *testing.T) {
	sub, fake := newTestSubstrate(t)
	login(t, sub)

	ctx := context.Background()
	rows, err := sub.OpenReservations(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	own := rows[0]
	assert.Empty(t, own.Member)
	assert.Equal(t, "08/31/2026", own.Date)
	assert.Equal(t, "9:00 AM - 9:45 AM", own.TimeRange)
	assert.Equal(t, "Squash", own.Activity)
	assert.Equal(t, "Court 2", own.Court)
	assert.Equal(t, "resForm:cancel_0", own.CancelToken)

	assert.Equal(t, "Alice", rows[1].Member)
	assert.Empty(t, rows[1].CancelToken, "immutable rows carry no cancel control")

	require.NoError(t, sub.ClickCancel(ctx, own.CancelToken))

	outcome, err := sub.ConfirmCancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, portal.OutcomeSuccess, outcome.Status)
	assert.Equal(t, "resForm:confirmYes", fake.lastPostback["javax.faces.source"])
}

func TestConfirmCancelWithoutDialog(t *testing.T) {
	sub, _ := newTestSubstrate(t)
	login(t, sub)

	_, err := sub.OpenReservations(context.Background())
	require.NoError(t, err)

	_, err = sub.ConfirmCancel(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrProtocolState)
}

// A redirect after a partial postback lands on a full page render, so the
// follow-up GET must not carry the partial-AJAX headers; with them the
// portal would answer with a partial-response envelope instead of HTML.
func TestRedirectHopDropsPartialHeaders(t *testing.T) {
	var hopHeaders http.Header
	mux := http.NewServeMux()
	mux.HandleFunc("POST /postback", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("GET /landing", func(w http.ResponseWriter, r *http.Request) {
		hopHeaders = r.Header.Clone()
		fmt.Fprint(w, "<html><body>landing</body></html>")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.NetworkConfig{RequestTimeout: 10 * time.Second, UserAgent: "courtbook-test"}
	sub, err := New(srv.URL, cfg, zap.NewNop())
	require.NoError(t, err)

	form := url.Values{}
	form.Set("javax.faces.partial.ajax", "true")
	body, status, err := sub.do(context.Background(), http.MethodPost, "/postback", form, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "landing")

	require.NotNil(t, hopHeaders, "redirect target was never requested")
	assert.Empty(t, hopHeaders.Get("Faces-Request"))
	assert.Empty(t, hopHeaders.Get("X-Requested-With"))
	assert.Empty(t, hopHeaders.Get("Content-Type"), "the hop is a bare GET")
}
