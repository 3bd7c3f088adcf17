// File: internal/portal/extract/extract.go
//
// Package extract pulls structured state out of the portal's server-rendered
// markup: view-state tokens, form field sets, the widget ids the framework
// minted for the current page, open grid slots, and reservation rows. All
// functions are read-only over a parsed document; the only side effect
// anywhere is diagnostic logging when a heuristic fallback fires.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

// ViewStateField is the hidden input carrying the server's page-state token.
const ViewStateField = "javax.faces.ViewState"

// FullViewField and FullViewValue force the scheduler into its "all courts"
// render mode. The portal defaults to a truncated court subset; omitting
// this override silently drops courts from every subsequent render, so it is
// injected into every field set extracted from the grid page.
const (
	FullViewField = "schedulerDisplayMode"
	FullViewValue = "allCourts"
)

// Best-guess widget ids used only when structural resolution fails. These
// match the portal's most commonly observed deployment and are logged loudly
// when used.
const (
	FallbackDatePicker   = "scheduleForm:datePicker"
	FallbackActivityMenu = "scheduleForm:activityMenu"
	FallbackSaveButton   = "scheduleForm:reservationPanel:saveBtn"
	FallbackReserveLink  = "scheduleForm:openReservationScreen"
)

// Extractor bundles the read-only extraction functions with a logger so
// heuristic fallbacks are observable. It holds no other state.
type Extractor struct {
	log *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{log: logger.Named("extract")}
}

// ParseFragment parses an HTML fragment (typically the CDATA content of a
// partial-response update) into a queryable document.
func ParseFragment(fragment string) (*goquery.Document, error) {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(node), nil
}

// ViewState returns the current view-state token from a full page, or ""
// when the page carries none.
func (e *Extractor) ViewState(doc *goquery.Document) string {
	return doc.Find("input[name='" + ViewStateField + "']").First().AttrOr("value", "")
}

// FormFields reconstructs the observable state of the page's main form: all
// named hidden inputs, text-like inputs with a current value, and the
// selected option of every dropdown. The full-view override is always
// present in the result.
func (e *Extractor) FormFields(doc *goquery.Document) portal.FormFieldSet {
	fields := make(portal.FormFieldSet)

	form := e.mainForm(doc)
	if form.Length() == 0 {
		// Partial fragments have no <form>; fall back to scanning the whole
		// document so fields inside re-rendered panels are still picked up.
		form = doc.Selection
	}

	form.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		typ := strings.ToLower(s.AttrOr("type", "text"))
		switch typ {
		case "hidden", "text", "email":
			fields[name] = s.AttrOr("value", "")
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); checked {
				fields[name] = s.AttrOr("value", "on")
			}
		}
	})

	form.Find("select[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		selected := s.Find("option[selected]").First()
		if selected.Length() > 0 {
			fields[name] = selected.AttrOr("value", "")
			return
		}
		// No explicit selection: the browser would submit the first option.
		if first := s.Find("option").First(); first.Length() > 0 {
			fields[name] = first.AttrOr("value", "")
		}
	})

	fields[FullViewField] = FullViewValue
	return fields
}

// Components resolves the widget ids for the current page. Resolution is
// structural, not name-based: the framework mints opaque ids per deployment
// and per session, so nothing here may assume a fixed naming scheme.
//
// The dropdown-style widget renders a hidden input pair <base>_input plus
// <base>_focus; the calendar-style widget renders only <base>_input. That
// companion-field difference is the discriminator.
func (e *Extractor) Components(doc *goquery.Document) portal.ComponentRegistry {
	reg := portal.ComponentRegistry{}

	if form := e.mainForm(doc); form.Length() > 0 {
		reg.FormID = form.AttrOr("id", "")
	}

	// Collect the set of all element ids once; companion lookups are then
	// constant-time.
	ids := make(map[string]bool)
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		ids[s.AttrOr("id", "")] = true
	})

	doc.Find("input[id$='_input']").Each(func(_ int, s *goquery.Selection) {
		base := strings.TrimSuffix(s.AttrOr("id", ""), "_input")
		if base == "" {
			return
		}
		if ids[base+"_focus"] {
			if reg.ActivityMenu == "" {
				reg.ActivityMenu = base
			}
		} else if reg.DatePicker == "" {
			reg.DatePicker = base
		}
	})

	reg.SaveButton = e.buttonByText(doc, "save")
	reg.ReserveLink = e.linkByHint(doc, "reservation")

	if reg.DatePicker == "" {
		reg.DatePicker = FallbackDatePicker
		reg.DatePickerFallback = true
		e.log.Warn("Structural resolution of the date picker failed; using fallback id.",
			zap.String("fallback", FallbackDatePicker))
	}
	if reg.ActivityMenu == "" {
		reg.ActivityMenu = FallbackActivityMenu
		reg.ActivityMenuFallback = true
		e.log.Warn("Structural resolution of the activity menu failed; using fallback id.",
			zap.String("fallback", FallbackActivityMenu))
	}
	if reg.SaveButton == "" {
		reg.SaveButton = FallbackSaveButton
		reg.SaveButtonFallback = true
		e.log.Warn("Structural resolution of the save button failed; using fallback id.",
			zap.String("fallback", FallbackSaveButton))
	}
	if reg.ReserveLink == "" {
		reg.ReserveLink = FallbackReserveLink
	}

	return reg
}

// mainForm returns the form carrying the view-state input, or the first
// form on the page when none does.
func (e *Extractor) mainForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[name='"+ViewStateField+"']").Length() > 0
	}).First()
	if form.Length() > 0 {
		return form
	}
	return doc.Find("form").First()
}

// buttonByText finds an id-bearing button whose visible text contains the
// given word, case-insensitively.
func (e *Extractor) buttonByText(doc *goquery.Document, word string) string {
	id := ""
	doc.Find("button[id], a[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(strings.TrimSpace(s.Text())), word) {
			id = s.AttrOr("id", "")
			return false
		}
		return true
	})
	return id
}

// linkByHint finds an id-bearing anchor whose onclick or href mentions the
// given hint.
func (e *Extractor) linkByHint(doc *goquery.Document, hint string) string {
	id := ""
	doc.Find("a[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		target := strings.ToLower(s.AttrOr("onclick", "") + " " + s.AttrOr("href", ""))
		if strings.Contains(target, hint) {
			id = s.AttrOr("id", "")
			return false
		}
		return true
	})
	return id
}

// SaveControl finds the save/confirm button of the reservation panel in a
// freshly rendered fragment. Used after a slot click, when the panel (and
// its minted button id) first exists.
func (e *Extractor) SaveControl(doc *goquery.Document) (string, bool) {
	id := e.buttonByText(doc, "save")
	return id, id != ""
}

// ConfirmControl finds the dialog control that confirms a destructive
// action: visible text "YES" combined with the danger styling class. Ids
// and positions of dialog buttons are dynamic, so neither is used.
func (e *Extractor) ConfirmControl(doc *goquery.Document) (string, bool) {
	id := ""
	doc.Find("a[id], button[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToUpper(strings.TrimSpace(s.Text()))
		class := s.AttrOr("class", "")
		if text == "YES" && strings.Contains(class, "danger") {
			id = s.AttrOr("id", "")
			return false
		}
		return true
	})
	return id, id != ""
}
