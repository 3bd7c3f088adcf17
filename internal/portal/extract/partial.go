// File: internal/portal/extract/partial.go
package extract

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// PartialResponse is a decoded AJAX partial-update payload: the XML envelope
// the framework returns for every simulated UI event. Each <update> element
// carries a re-rendered fragment as CDATA, keyed by the id of the component
// it replaces; the view-state update is split out because it must overwrite
// the previous token, never merge with it.
type PartialResponse struct {
	// Updates maps component id to its re-rendered HTML fragment.
	Updates map[string]string
	// ViewState is the fresh token, or "" when this payload carried none.
	ViewState string
	// Redirect is a server-instructed navigation target, or "".
	Redirect string
	// ErrorName and ErrorMessage surface a server-side exception rendered
	// into the payload.
	ErrorName    string
	ErrorMessage string
}

// HasError reports whether the payload carried a server-side exception.
func (p PartialResponse) HasError() bool {
	return p.ErrorName != "" || p.ErrorMessage != ""
}

// Body concatenates every non-view-state fragment, for heuristics that only
// need the rendered text.
func (p PartialResponse) Body() string {
	var b strings.Builder
	for id, fragment := range p.Updates {
		if strings.Contains(id, ViewStateField) {
			continue
		}
		b.WriteString(fragment)
	}
	return b.String()
}

// ParsePartialResponse decodes a partial-response XML payload.
func ParsePartialResponse(payload []byte) (PartialResponse, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return PartialResponse{}, fmt.Errorf("malformed partial response: %w", err)
	}

	root := doc.SelectElement("partial-response")
	if root == nil {
		return PartialResponse{}, fmt.Errorf("payload is not a partial response")
	}

	pr := PartialResponse{Updates: make(map[string]string)}

	if changes := root.SelectElement("changes"); changes != nil {
		for _, update := range changes.SelectElements("update") {
			id := update.SelectAttrValue("id", "")
			content := update.Text()
			if strings.Contains(id, ViewStateField) {
				pr.ViewState = strings.TrimSpace(content)
				continue
			}
			pr.Updates[id] = content
		}
	}

	if redirect := root.SelectElement("redirect"); redirect != nil {
		pr.Redirect = redirect.SelectAttrValue("url", "")
	}

	if errEl := root.SelectElement("error"); errEl != nil {
		if name := errEl.SelectElement("error-name"); name != nil {
			pr.ErrorName = strings.TrimSpace(name.Text())
		}
		if msg := errEl.SelectElement("error-message"); msg != nil {
			pr.ErrorMessage = strings.TrimSpace(msg.Text())
		}
	}

	return pr, nil
}
