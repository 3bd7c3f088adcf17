// File: internal/portal/extract/login.go
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PositiveLoginMarkers are the signals that a page was rendered for an
// authenticated user. At least one must be present for a session to count
// as live; the mere absence of an error element proves nothing.
var PositiveLoginMarkers = []string{
	"Sign Out",
	"sign-out",
	"/c/portal/logout",
}

// LoginForm describes the portal's login form as rendered: where to post,
// which field names carry the credentials, and the hidden fields (auth
// token, form date, redirect flags) that must be echoed back verbatim.
type LoginForm struct {
	Action        string
	UsernameField string
	PasswordField string
	Hidden        map[string]string
}

// LoginForm locates and decodes the login form. The second return is false
// when no recognizable login form is present on the page.
func (e *Extractor) LoginForm(doc *goquery.Document) (LoginForm, bool) {
	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[type='password']").Length() > 0
	}).First()
	if form.Length() == 0 {
		return LoginForm{}, false
	}

	lf := LoginForm{
		Action: form.AttrOr("action", ""),
		Hidden: make(map[string]string),
	}

	form.Find("input[type='hidden'][name]").Each(func(_ int, s *goquery.Selection) {
		lf.Hidden[s.AttrOr("name", "")] = s.AttrOr("value", "")
	})

	lf.PasswordField = form.Find("input[type='password']").First().AttrOr("name", "")

	// The username input is the text-like input whose name hints at a login
	// identity; failing that, the first text input in the form.
	form.Find("input[type='text'], input[type='email']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := strings.ToLower(s.AttrOr("name", ""))
		if strings.Contains(name, "login") || strings.Contains(name, "email") || strings.Contains(name, "user") {
			lf.UsernameField = s.AttrOr("name", "")
			return false
		}
		if lf.UsernameField == "" {
			lf.UsernameField = s.AttrOr("name", "")
		}
		return true
	})

	if lf.UsernameField == "" || lf.PasswordField == "" {
		return LoginForm{}, false
	}
	return lf, true
}

// IsAuthenticated reports whether the page body carries a positive
// logged-in marker.
func IsAuthenticated(body string) bool {
	for _, marker := range PositiveLoginMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// LoginError returns the portal's rendered login error text, if any, so it
// can be surfaced verbatim.
func (e *Extractor) LoginError(doc *goquery.Document) string {
	for _, sel := range []string{".portlet-msg-error", ".alert-danger", ".login-error"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
