// File: internal/portal/httpdrv/substrate.go
//
// Package httpdrv is the raw-HTTP execution substrate: it replays the
// portal's AJAX partial postbacks itself, as form-encoded POSTs, and parses
// the returned HTML and partial-response XML. No browser is involved; every
// piece of hidden page state the framework would track in JS is tracked
// here explicitly.
package httpdrv

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courtbook/internal/config"
	"github.com/xkilldash9x/courtbook/internal/portal"
	"github.com/xkilldash9x/courtbook/internal/portal/extract"
	"github.com/xkilldash9x/courtbook/internal/portal/interpret"
)

// Fixed portal paths. These are stable across deployments; it is the widget
// ids within the pages that are not.
const (
	loginPath        = "/web/club/login"
	gridPath         = "/web/club/schedule"
	reservationsPath = "/web/club/my-reservations"
)

// JSF partial-request control fields.
const (
	paramPartialAjax   = "javax.faces.partial.ajax"
	paramSource        = "javax.faces.source"
	paramExecute       = "javax.faces.partial.execute"
	paramRender        = "javax.faces.partial.render"
	paramBehaviorEvent = "javax.faces.behavior.event"
	paramPartialEvent  = "javax.faces.partial.event"
)

const maxRedirects = 5

// Substrate implements portal.Substrate over a plain HTTP client. It is
// stateful across the steps of one command: view state, form fields, the
// component registry, and the cookie map all evolve with each exchange.
type Substrate struct {
	client  *http.Client
	baseURL *url.URL
	ua      string
	ext     *extract.Extractor
	log     *zap.Logger

	cookies map[string]string

	// Per-page protocol state, primed by OpenGrid / OpenReservations and
	// evolved by every partial postback.
	currentPath    string
	viewState      string
	fields         portal.FormFieldSet
	reg            portal.ComponentRegistry
	confirmControl string
}

var _ portal.Substrate = (*Substrate)(nil)

// New creates an HTTP substrate for the portal at baseURL.
func New(baseURL string, netCfg config.NetworkConfig, logger *zap.Logger) (*Substrate, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	log := logger.Named("httpdrv")
	return &Substrate{
		client:  newHTTPClient(netCfg),
		baseURL: u,
		ua:      netCfg.UserAgent,
		ext:     extract.New(log),
		log:     log,
		cookies: map[string]string{},
		fields:  portal.FormFieldSet{},
	}, nil
}

// Cookies returns a copy of the current cookie map.
func (s *Substrate) Cookies() map[string]string {
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

// SetCookies replaces the cookie map.
func (s *Substrate) SetCookies(cookies map[string]string) {
	s.cookies = make(map[string]string, len(cookies))
	for k, v := range cookies {
		s.cookies[k] = v
	}
}

// -- Authentication --

// Authenticate fetches the login page, replays its form with the
// credentials (password base64-encoded, per portal convention), follows the
// redirect, and requires a positive logged-in marker in the final render.
func (s *Substrate) Authenticate(ctx context.Context, username, password string) error {
	doc, _, err := s.getDocument(ctx, "login page", loginPath)
	if err != nil {
		return err
	}

	form, ok := s.ext.LoginForm(doc)
	if !ok {
		return fmt.Errorf("%w: login form not found on %s", portal.ErrAuthentication, loginPath)
	}

	values := url.Values{}
	for k, v := range form.Hidden {
		values.Set(k, v)
	}
	values.Set(form.UsernameField, username)
	values.Set(form.PasswordField, base64.StdEncoding.EncodeToString([]byte(password)))

	action := form.Action
	if action == "" {
		action = loginPath
	}
	body, status, err := s.do(ctx, http.MethodPost, action, values, false)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &portal.TransportError{Step: "login submit", Status: status}
	}

	finalDoc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse post-login page: %w", err)
	}
	if msg := s.ext.LoginError(finalDoc); msg != "" {
		return fmt.Errorf("%w: %s", portal.ErrAuthentication, msg)
	}
	if !extract.IsAuthenticated(body) {
		return fmt.Errorf("%w: no positive login marker after submit", portal.ErrAuthentication)
	}

	s.log.Info("Login succeeded.", zap.Int("cookies", len(s.cookies)))
	return nil
}

// VerifySession performs the lightweight check: fetch an authenticated-only
// page and look for the positive marker.
func (s *Substrate) VerifySession(ctx context.Context) (bool, error) {
	_, body, err := s.getDocument(ctx, "session verification", gridPath)
	if err != nil {
		return false, err
	}
	return extract.IsAuthenticated(body), nil
}

// -- Grid navigation --

// OpenGrid loads the booking grid and primes view state, form fields, and
// the component registry.
func (s *Substrate) OpenGrid(ctx context.Context) error {
	doc, _, err := s.getDocument(ctx, "open grid", gridPath)
	if err != nil {
		return err
	}

	s.currentPath = gridPath
	s.viewState = s.ext.ViewState(doc)
	if s.viewState == "" {
		return &portal.StateError{Step: "open grid", Expected: "a view-state token"}
	}
	s.fields = s.ext.FormFields(doc)
	s.reg = s.ext.Components(doc)
	s.confirmControl = ""

	s.log.Debug("Grid primed.",
		zap.String("form", s.reg.FormID),
		zap.String("date_picker", s.reg.DatePicker),
		zap.String("activity_menu", s.reg.ActivityMenu),
		zap.Bool("date_picker_fallback", s.reg.DatePickerFallback),
		zap.Bool("activity_menu_fallback", s.reg.ActivityMenuFallback))
	return nil
}

// NavigateDate simulates the date picker's dateSelect behavior.
func (s *Substrate) NavigateDate(ctx context.Context, date time.Time) error {
	_, err := s.postPartial(ctx, "navigate date", s.reg.DatePicker, "dateSelect", portal.FormFieldSet{
		s.reg.DatePicker + "_input": date.Format(portal.PortalDateFormat),
	})
	return err
}

// NavigateActivity simulates the activity dropdown's change behavior and
// parses the re-rendered grid for open slots.
func (s *Substrate) NavigateActivity(ctx context.Context, activity string) ([]portal.Slot, error) {
	pr, err := s.postPartial(ctx, "navigate activity", s.reg.ActivityMenu, "change", portal.FormFieldSet{
		s.reg.ActivityMenu + "_input": activity,
	})
	if err != nil {
		return nil, err
	}

	frag, err := extract.ParseFragment(pr.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to parse grid fragment: %w", err)
	}
	return s.ext.Slots(frag), nil
}

// SelectSlot simulates a click on the grid cell. The server responds by
// rendering the reservation confirmation panel; its fields and the freshly
// minted save button id are captured from the fragment.
func (s *Substrate) SelectSlot(ctx context.Context, slot portal.Slot) error {
	if slot.RawID == "" {
		return &portal.StateError{Step: "select slot", Expected: "a slot with a component id"}
	}

	pr, err := s.postPartial(ctx, "select slot", slot.RawID, "click", nil)
	if err != nil {
		return err
	}

	frag, err := extract.ParseFragment(pr.Body())
	if err != nil {
		return fmt.Errorf("failed to parse confirmation panel: %w", err)
	}
	if id, ok := s.ext.SaveControl(frag); ok {
		s.reg.SaveButton = id
		s.reg.SaveButtonFallback = false
	} else if s.reg.SaveButtonFallback {
		s.log.Warn("Confirmation panel rendered without a recognizable save control; keeping fallback id.",
			zap.String("fallback", s.reg.SaveButton))
	}
	return nil
}

// ConfirmSave submits the save action and classifies the outcome.
func (s *Substrate) ConfirmSave(ctx context.Context) (portal.BookingOutcome, error) {
	if s.reg.SaveButton == "" {
		return portal.BookingOutcome{}, &portal.StateError{Step: "confirm save", Expected: "a save control id"}
	}

	pr, err := s.postPartial(ctx, "confirm save", s.reg.SaveButton, "click", nil)
	if err != nil {
		return portal.BookingOutcome{}, err
	}
	if pr.HasError() {
		return portal.BookingOutcome{
			Status: portal.OutcomeFailure,
			Detail: strings.TrimSpace(pr.ErrorName + " " + pr.ErrorMessage),
		}, nil
	}
	return interpret.Save(pr.Body(), true), nil
}

// -- Reservations --

// OpenReservations loads the reservations page, primes protocol state for
// the cancel path, and returns every listed row.
func (s *Substrate) OpenReservations(ctx context.Context) ([]portal.Reservation, error) {
	doc, _, err := s.getDocument(ctx, "open reservations", reservationsPath)
	if err != nil {
		return nil, err
	}

	s.currentPath = reservationsPath
	s.viewState = s.ext.ViewState(doc)
	if s.viewState == "" {
		return nil, &portal.StateError{Step: "open reservations", Expected: "a view-state token"}
	}
	s.fields = s.ext.FormFields(doc)
	s.reg = s.ext.Components(doc)
	s.confirmControl = ""

	return s.ext.Reservations(doc), nil
}

// ClickCancel simulates a click on the reservation's cancel control and
// locates the YES control inside the dialog the server renders back.
func (s *Substrate) ClickCancel(ctx context.Context, token string) error {
	pr, err := s.postPartial(ctx, "click cancel", token, "click", nil)
	if err != nil {
		return err
	}

	frag, err := extract.ParseFragment(pr.Body())
	if err != nil {
		return fmt.Errorf("failed to parse cancel dialog: %w", err)
	}
	if id, ok := s.ext.ConfirmControl(frag); ok {
		s.confirmControl = id
		return nil
	}
	return &portal.StateError{Step: "click cancel", Expected: "a YES confirmation control in the dialog"}
}

// ConfirmCancel clicks the dialog's YES control and classifies the outcome.
func (s *Substrate) ConfirmCancel(ctx context.Context) (portal.CancelOutcome, error) {
	if s.confirmControl == "" {
		return portal.CancelOutcome{}, &portal.StateError{Step: "confirm cancel", Expected: "a previously located YES control"}
	}

	pr, err := s.postPartial(ctx, "confirm cancel", s.confirmControl, "click", nil)
	if err != nil {
		return portal.CancelOutcome{}, err
	}
	if pr.HasError() {
		return portal.CancelOutcome{
			Status:  portal.OutcomeFailure,
			Message: strings.TrimSpace(pr.ErrorName + " " + pr.ErrorMessage),
		}, nil
	}
	return interpret.Cancel(pr.Body(), true), nil
}

// -- Partial postback machinery --

// postPartial issues one AJAX partial postback: the full current field set,
// the JSF control fields identifying the simulated event, and the most
// recent view-state token. The response's fresh token overwrites ours, and
// fields found in the re-rendered fragments are merged (never replaced)
// into the carried-forward set.
func (s *Substrate) postPartial(ctx context.Context, step, source, event string, extra portal.FormFieldSet) (extract.PartialResponse, error) {
	if s.viewState == "" {
		return extract.PartialResponse{}, &portal.StateError{Step: step, Expected: "a view-state token from a prior step"}
	}
	if source == "" {
		return extract.PartialResponse{}, &portal.StateError{Step: step, Expected: "a resolved source component id"}
	}

	merged := s.fields.Merge(extra)

	values := url.Values{}
	for k, v := range merged {
		values.Set(k, v)
	}
	values.Set(paramPartialAjax, "true")
	values.Set(paramSource, source)
	values.Set(paramExecute, "@all")
	values.Set(paramRender, s.reg.FormID)
	values.Set(paramBehaviorEvent, event)
	values.Set(paramPartialEvent, event)
	values.Set(source, source)
	values.Set(extract.ViewStateField, s.viewState)

	body, status, err := s.do(ctx, http.MethodPost, s.currentPath, values, true)
	if err != nil {
		return extract.PartialResponse{}, err
	}
	if status < 200 || status >= 300 {
		return extract.PartialResponse{}, &portal.TransportError{Step: step, Status: status}
	}

	pr, err := extract.ParsePartialResponse([]byte(body))
	if err != nil {
		return extract.PartialResponse{}, &portal.StateError{Step: step, Expected: "a partial-response payload"}
	}

	// The token is a single mutable slot: always overwrite, never merge.
	if pr.ViewState != "" {
		s.viewState = pr.ViewState
	}

	// Fields present in the fragments update the set; everything else is
	// carried forward untouched.
	s.fields = merged
	for _, fragment := range pr.Updates {
		fragDoc, err := extract.ParseFragment(fragment)
		if err != nil {
			continue
		}
		s.fields = s.fields.Merge(s.ext.FormFields(fragDoc))
	}

	s.log.Debug("Partial postback complete.",
		zap.String("step", step),
		zap.String("source", source),
		zap.Int("updates", len(pr.Updates)))
	return pr, nil
}

// -- HTTP plumbing --

// getDocument GETs a portal path and parses the final page.
func (s *Substrate) getDocument(ctx context.Context, step, path string) (*goquery.Document, string, error) {
	body, status, err := s.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return nil, "", err
	}
	if status < 200 || status >= 300 {
		return nil, "", &portal.TransportError{Step: step, Status: status}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", step, err)
	}
	return doc, body, nil
}

// do executes one request, walking redirect chains manually so cookies set
// on intermediate hops (the login flow depends on these) are captured.
func (s *Substrate) do(ctx context.Context, method, target string, form url.Values, partial bool) (string, int, error) {
	u, err := s.resolve(target)
	if err != nil {
		return "", 0, err
	}

	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}

	for hop := 0; ; hop++ {
		s.prepareHeaders(req, form != nil, partial)

		resp, err := s.client.Do(req)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", portal.ErrTransport, err)
		}

		s.absorbCookies(resp)

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if location == "" {
				return "", resp.StatusCode, fmt.Errorf("%w: redirect without Location", portal.ErrTransport)
			}
			if hop >= maxRedirects {
				return "", resp.StatusCode, fmt.Errorf("%w: more than %d redirects", portal.ErrTransport, maxRedirects)
			}
			next, err := req.URL.Parse(location)
			if err != nil {
				return "", resp.StatusCode, fmt.Errorf("%w: bad redirect target %q", portal.ErrTransport, location)
			}
			// Redirects after a form submit continue as GET, and as a full
			// page load: partial-AJAX headers on the hop would make the
			// portal answer with a partial-response envelope.
			req, err = http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
			if err != nil {
				return "", 0, fmt.Errorf("failed to build redirect request: %w", err)
			}
			form = nil
			partial = false
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", resp.StatusCode, fmt.Errorf("%w: reading response body: %v", portal.ErrTransport, err)
		}
		return string(data), resp.StatusCode, nil
	}
}

func (s *Substrate) prepareHeaders(req *http.Request, hasForm, partial bool) {
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if hasForm {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
	if partial {
		// The framework distinguishes full loads from AJAX postbacks by
		// this header.
		req.Header.Set("Faces-Request", "partial/ajax")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	if len(s.cookies) > 0 {
		pairs := make([]string, 0, len(s.cookies))
		for name, value := range s.cookies {
			pairs = append(pairs, name+"="+value)
		}
		req.Header.Set("Cookie", strings.Join(pairs, "; "))
	}
}

func (s *Substrate) absorbCookies(resp *http.Response) {
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(s.cookies, c.Name)
			continue
		}
		s.cookies[c.Name] = c.Value
	}
}

func (s *Substrate) resolve(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request target %q: %w", target, err)
	}
	return s.baseURL.ResolveReference(u), nil
}
