// File: internal/portal/browserdrv/substrate.go
//
// Package browserdrv is the driven-Chrome execution substrate. Where httpdrv
// replays the portal's AJAX protocol itself, this substrate lets the real
// page JavaScript do it: widgets are triggered in-page, the framework manages
// its own view state and form fields, and outcomes are read from the rendered
// DOM after the in-page AJAX queue drains. It exists for the portal states
// the raw protocol replay cannot reach, at the cost of needing a Chrome
// binary.
package browserdrv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courtbook/internal/config"
	"github.com/xkilldash9x/courtbook/internal/portal"
	"github.com/xkilldash9x/courtbook/internal/portal/extract"
	"github.com/xkilldash9x/courtbook/internal/portal/interpret"
)

const (
	loginPath        = "/web/club/login"
	gridPath         = "/web/club/schedule"
	reservationsPath = "/web/club/my-reservations"
)

// settleExpr is evaluated repeatedly after every triggered behavior until it
// reports true: the document is loaded and no framework AJAX request is in
// flight. Both framework globals are probed defensively because the portal
// has shipped with and without each.
const settleExpr = `(function() {
	if (document.readyState !== "complete") return false;
	if (window.jQuery && jQuery.active > 0) return false;
	if (window.PrimeFaces && PrimeFaces.ajax && PrimeFaces.ajax.Queue && !PrimeFaces.ajax.Queue.isEmpty()) return false;
	return true;
})()`

// Substrate implements portal.Substrate by driving a headless Chrome tab.
// Like its HTTP twin it is stateful across the steps of one command and not
// safe for concurrent use.
type Substrate struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	cfg     config.BrowserConfig
	baseURL string
	ext     *extract.Extractor
	log     *zap.Logger

	reg            portal.ComponentRegistry
	confirmControl string
}

var _ portal.Substrate = (*Substrate)(nil)

// New launches a Chrome instance and opens the tab all operations run in.
// Close must be called to tear it down.
func New(parent context.Context, baseURL string, cfg config.BrowserConfig, logger *zap.Logger) (*Substrate, error) {
	log := logger.Named("browserdrv")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		name, value, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Starting the browser eagerly surfaces a missing binary here rather
	// than inside the first portal operation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Substrate{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		cfg:         cfg,
		baseURL:     strings.TrimRight(baseURL, "/"),
		ext:         extract.New(log),
		log:         log,
	}, nil
}

// Close tears down the tab and the browser process.
func (s *Substrate) Close() {
	s.tabCancel()
	s.allocCancel()
}

// -- Cookies --

// Cookies reads the session cookies out of the browser.
func (s *Substrate) Cookies() map[string]string {
	out := map[string]string{}
	err := chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out[c.Name] = c.Value
		}
		return nil
	}))
	if err != nil {
		s.log.Warn("Failed to read browser cookies.", zap.Error(err))
	}
	return out
}

// SetCookies seeds the browser with persisted session cookies before the
// first navigation.
func (s *Substrate) SetCookies(cookies map[string]string) {
	host := s.host()
	err := chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return network.ClearBrowserCookies().Do(ctx)
		}
		for name, value := range cookies {
			if err := network.SetCookie(name, value).
				WithDomain(host).
				WithPath("/").
				Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
	if err != nil {
		s.log.Warn("Failed to seed browser cookies.", zap.Error(err))
	}
}

func (s *Substrate) host() string {
	h := strings.TrimPrefix(strings.TrimPrefix(s.baseURL, "https://"), "http://")
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	return h
}

// -- Authentication --

// Authenticate drives the real login form. The page's own JavaScript applies
// the portal's password encoding on submit, so the plain password is typed.
func (s *Substrate) Authenticate(ctx context.Context, username, password string) error {
	html, err := s.navigate(ctx, loginPath)
	if err != nil {
		return err
	}

	doc, err := extract.ParseFragment(html)
	if err != nil {
		return fmt.Errorf("failed to parse login page: %w", err)
	}
	form, ok := s.ext.LoginForm(doc)
	if !ok {
		return fmt.Errorf("%w: login form not found on %s", portal.ErrAuthentication, loginPath)
	}

	userSel := `input[name='` + form.UsernameField + `']`
	passSel := `input[name='` + form.PasswordField + `']`

	run, cancel := s.opContext(ctx)
	defer cancel()
	err = chromedp.Run(run,
		chromedp.WaitVisible(userSel, chromedp.ByQuery),
		chromedp.Clear(userSel, chromedp.ByQuery),
		chromedp.SendKeys(userSel, username, chromedp.ByQuery),
		chromedp.Clear(passSel, chromedp.ByQuery),
		chromedp.SendKeys(passSel, password, chromedp.ByQuery),
		chromedp.Submit(passSel, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: driving login form: %v", portal.ErrTransport, err)
	}
	if err := s.settle(ctx); err != nil {
		return err
	}

	final, err := s.outerHTML(ctx)
	if err != nil {
		return err
	}
	finalDoc, err := extract.ParseFragment(final)
	if err != nil {
		return fmt.Errorf("failed to parse post-login page: %w", err)
	}
	if msg := s.ext.LoginError(finalDoc); msg != "" {
		return fmt.Errorf("%w: %s", portal.ErrAuthentication, msg)
	}
	if !extract.IsAuthenticated(final) {
		return fmt.Errorf("%w: no positive login marker after submit", portal.ErrAuthentication)
	}

	s.log.Info("Login succeeded.")
	return nil
}

// VerifySession loads an authenticated-only page and looks for the positive
// marker.
func (s *Substrate) VerifySession(ctx context.Context) (bool, error) {
	html, err := s.navigate(ctx, gridPath)
	if err != nil {
		return false, err
	}
	return extract.IsAuthenticated(html), nil
}

// -- Grid navigation --

// OpenGrid loads the booking grid and resolves the session's widget ids.
func (s *Substrate) OpenGrid(ctx context.Context) error {
	html, err := s.navigate(ctx, gridPath)
	if err != nil {
		return err
	}
	doc, err := extract.ParseFragment(html)
	if err != nil {
		return fmt.Errorf("failed to parse grid page: %w", err)
	}
	s.reg = s.ext.Components(doc)
	s.confirmControl = ""

	// The portal renders only the member's default court unless the display
	// mode field says otherwise. The HTTP substrate injects it into every
	// postback; here it is pinned in the live form so the page's own AJAX
	// calls carry it.
	if err := s.forceFullView(ctx); err != nil {
		return err
	}

	s.log.Debug("Grid opened.",
		zap.String("date_picker", s.reg.DatePicker),
		zap.String("activity_menu", s.reg.ActivityMenu))
	return nil
}

// forceFullView sets the scheduler display-mode field in the grid form so
// every subsequent in-page postback requests all courts. The hidden input is
// created if the render omitted it.
func (s *Substrate) forceFullView(ctx context.Context) error {
	run, cancel := s.opContext(ctx)
	defer cancel()

	var ok bool
	if err := chromedp.Run(run, chromedp.Evaluate(fullViewExpr(s.reg.FormID), &ok)); err != nil {
		return fmt.Errorf("%w: pinning display mode: %v", portal.ErrTransport, err)
	}
	if !ok {
		return &portal.StateError{Step: "open grid", Expected: "a grid form to pin the display mode in"}
	}
	return nil
}

// fullViewExpr builds the in-page script that writes the full-view value
// into the display-mode field, creating it when absent. formID selects the
// form to pin; when it is empty the first form on the page is used.
func fullViewExpr(formID string) string {
	return fmt.Sprintf(`(function() {
		var form = document.getElementById(%q) || document.forms[0];
		if (!form) return false;
		var el = form.querySelector("input[name='%s']");
		if (!el) {
			el = document.createElement("input");
			el.type = "hidden";
			el.name = %q;
			form.appendChild(el);
		}
		el.value = %q;
		return true;
	})()`, formID, extract.FullViewField, extract.FullViewField, extract.FullViewValue)
}

// NavigateDate writes the date into the calendar's backing input and fires
// its change behavior in-page.
func (s *Substrate) NavigateDate(ctx context.Context, date time.Time) error {
	input := s.reg.DatePicker + "_input"
	if err := s.setAndFire(ctx, input, date.Format(portal.PortalDateFormat)); err != nil {
		return fmt.Errorf("date navigation: %w", err)
	}
	return s.settle(ctx)
}

// NavigateActivity writes the activity into the dropdown's backing input,
// fires its change behavior, and reads the re-rendered grid.
func (s *Substrate) NavigateActivity(ctx context.Context, activity string) ([]portal.Slot, error) {
	input := s.reg.ActivityMenu + "_input"
	if err := s.setAndFire(ctx, input, activity); err != nil {
		return nil, fmt.Errorf("activity navigation: %w", err)
	}
	if err := s.settle(ctx); err != nil {
		return nil, err
	}

	html, err := s.outerHTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ParseFragment(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse grid: %w", err)
	}
	return s.ext.Slots(doc), nil
}

// SelectSlot clicks the grid cell and waits for the confirmation panel
// render, then re-resolves the save control from the live DOM.
func (s *Substrate) SelectSlot(ctx context.Context, slot portal.Slot) error {
	if slot.RawID == "" {
		return &portal.StateError{Step: "select slot", Expected: "a slot with a component id"}
	}
	if err := s.clickID(ctx, slot.RawID); err != nil {
		return err
	}
	if err := s.settle(ctx); err != nil {
		return err
	}

	html, err := s.outerHTML(ctx)
	if err != nil {
		return err
	}
	doc, err := extract.ParseFragment(html)
	if err != nil {
		return fmt.Errorf("failed to parse confirmation panel: %w", err)
	}
	if id, ok := s.ext.SaveControl(doc); ok {
		s.reg.SaveButton = id
		s.reg.SaveButtonFallback = false
	}
	return nil
}

// ConfirmSave clicks the save control and classifies the rendered result.
func (s *Substrate) ConfirmSave(ctx context.Context) (portal.BookingOutcome, error) {
	if s.reg.SaveButton == "" {
		return portal.BookingOutcome{}, &portal.StateError{Step: "confirm save", Expected: "a save control id"}
	}
	if err := s.clickID(ctx, s.reg.SaveButton); err != nil {
		return portal.BookingOutcome{}, err
	}
	if err := s.settle(ctx); err != nil {
		return portal.BookingOutcome{}, err
	}
	html, err := s.outerHTML(ctx)
	if err != nil {
		return portal.BookingOutcome{}, err
	}
	return interpret.Save(html, true), nil
}

// -- Reservations --

// OpenReservations loads the listing page and parses every row.
func (s *Substrate) OpenReservations(ctx context.Context) ([]portal.Reservation, error) {
	html, err := s.navigate(ctx, reservationsPath)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ParseFragment(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reservations page: %w", err)
	}
	s.confirmControl = ""
	return s.ext.Reservations(doc), nil
}

// ClickCancel clicks the row's cancel control and locates the YES control in
// the dialog that renders.
func (s *Substrate) ClickCancel(ctx context.Context, token string) error {
	if token == "" {
		return &portal.StateError{Step: "click cancel", Expected: "a cancel control id"}
	}
	if err := s.clickID(ctx, token); err != nil {
		return err
	}
	if err := s.settle(ctx); err != nil {
		return err
	}

	html, err := s.outerHTML(ctx)
	if err != nil {
		return err
	}
	doc, err := extract.ParseFragment(html)
	if err != nil {
		return fmt.Errorf("failed to parse cancel dialog: %w", err)
	}
	if id, ok := s.ext.ConfirmControl(doc); ok {
		s.confirmControl = id
		return nil
	}
	return &portal.StateError{Step: "click cancel", Expected: "a YES confirmation control in the dialog"}
}

// ConfirmCancel clicks the dialog's YES control and classifies the result.
func (s *Substrate) ConfirmCancel(ctx context.Context) (portal.CancelOutcome, error) {
	if s.confirmControl == "" {
		return portal.CancelOutcome{}, &portal.StateError{Step: "confirm cancel", Expected: "a previously located YES control"}
	}
	if err := s.clickID(ctx, s.confirmControl); err != nil {
		return portal.CancelOutcome{}, err
	}
	if err := s.settle(ctx); err != nil {
		return portal.CancelOutcome{}, err
	}
	html, err := s.outerHTML(ctx)
	if err != nil {
		return portal.CancelOutcome{}, err
	}
	return interpret.Cancel(html, true), nil
}

// -- Browser plumbing --

// opContext binds the tab to the caller's deadline so a cancelled command
// interrupts the browser action.
func (s *Substrate) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	run, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return run, func() { stop(); cancel() }
}

func (s *Substrate) navigate(ctx context.Context, path string) (string, error) {
	run, cancel := s.opContext(ctx)
	defer cancel()

	if err := chromedp.Run(run, chromedp.Navigate(s.baseURL+path)); err != nil {
		return "", fmt.Errorf("%w: navigating to %s: %v", portal.ErrTransport, path, err)
	}
	if err := s.settle(ctx); err != nil {
		return "", err
	}
	return s.outerHTML(ctx)
}

func (s *Substrate) outerHTML(ctx context.Context) (string, error) {
	run, cancel := s.opContext(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(run, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: reading page content: %v", portal.ErrTransport, err)
	}
	return html, nil
}

// clickID clicks the element with the given component id. Framework ids
// contain colons, so an attribute selector is used rather than "#id".
func (s *Substrate) clickID(ctx context.Context, id string) error {
	run, cancel := s.opContext(ctx)
	defer cancel()

	sel := `[id='` + id + `']`
	err := chromedp.Run(run,
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("%w: clicking %q: %v", portal.ErrTransport, id, err)
	}
	return nil
}

// setAndFire writes a value into a widget's backing input and dispatches a
// change event so the framework's registered behavior runs.
func (s *Substrate) setAndFire(ctx context.Context, inputID, value string) error {
	run, cancel := s.opContext(ctx)
	defer cancel()

	expr := fmt.Sprintf(`(function() {
		var el = document.getElementById(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	})()`, inputID, value)

	var found bool
	if err := chromedp.Run(run, chromedp.Evaluate(expr, &found)); err != nil {
		return fmt.Errorf("%w: firing change on %q: %v", portal.ErrTransport, inputID, err)
	}
	if !found {
		return &portal.StateError{Step: "trigger widget", Expected: "an element with id " + inputID}
	}
	return nil
}

// settle polls the in-page AJAX-idle signal on a fixed interval with a
// bounded number of polls. Exhausting the budget is not an error: the
// framework occasionally leaves a queue entry dangling after a completed
// update, so the caller proceeds with whatever has rendered.
func (s *Substrate) settle(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SettlePollInterval)
	defer ticker.Stop()

	for i := 0; i < s.cfg.SettleMaxPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var idle bool
		run, cancel := s.opContext(ctx)
		err := chromedp.Run(run, chromedp.Evaluate(settleExpr, &idle))
		cancel()
		if err != nil {
			return fmt.Errorf("%w: polling page idle: %v", portal.ErrTransport, err)
		}
		if idle {
			return nil
		}
	}

	s.log.Warn("Page never reported AJAX-idle; proceeding with the current render.",
		zap.Int("polls", s.cfg.SettleMaxPolls))
	return nil
}
