// File: internal/portal/extract/reservations.go
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

var (
	datePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
	timePattern = regexp.MustCompile(`\d{1,2}:\d{2}\s?(?:[AaPp][Mm])?`)

	// activityPattern decodes "Activity (left | right)" where one side is
	// the court and the other the category, in either order.
	activityPattern = regexp.MustCompile(`^(.*?)\s*\(([^|)]+)\|([^)]+)\)`)
)

// ownSectionHeader marks the section holding the authenticated user's own
// rows; any other header names a household member.
const ownSectionHeader = "my reservations"

// Reservations parses the reservations listing. Rows are grouped under
// per-member section headers: rows under "My Reservations" get an empty
// Member, rows under "<Name>'s Reservations" get Member = "<Name>".
func (e *Extractor) Reservations(doc *goquery.Document) []portal.Reservation {
	var out []portal.Reservation

	doc.Find(".reservation-group").Each(func(_ int, group *goquery.Selection) {
		member := memberFromHeader(group.Find("h1,h2,h3,h4").First().Text())
		group.Find("tbody tr, tr").Each(func(_ int, row *goquery.Selection) {
			if row.Find("td").Length() == 0 {
				return
			}
			if r, ok := parseReservationRow(row); ok {
				r.Member = member
				out = append(out, r)
			}
		})
	})

	return out
}

// memberFromHeader maps a section header to a member label: "" for the
// user's own section, the bare name otherwise.
func memberFromHeader(header string) string {
	h := strings.TrimSpace(header)
	if strings.EqualFold(h, ownSectionHeader) || h == "" {
		return ""
	}
	// "Alice's Reservations" -> "Alice".
	if idx := strings.Index(h, "'s "); idx > 0 {
		return h[:idx]
	}
	return strings.TrimSpace(strings.TrimSuffix(h, "Reservations"))
}

func parseReservationRow(row *goquery.Selection) (portal.Reservation, bool) {
	text := strings.TrimSpace(row.Text())
	if text == "" {
		return portal.Reservation{}, false
	}

	r := portal.Reservation{}

	if m := datePattern.FindString(text); m != "" {
		r.Date = m
	}

	times := timePattern.FindAllString(text, 2)
	switch len(times) {
	case 1:
		r.TimeRange = strings.TrimSpace(times[0])
	case 2:
		r.TimeRange = strings.TrimSpace(times[0]) + " - " + strings.TrimSpace(times[1])
	}

	r.Activity, r.Court = parseActivityCell(row.Find("td").First().Text())
	if r.Activity == "" {
		r.Activity = strings.TrimSpace(row.Find("td").First().Text())
	}

	// The cancel control id, when the row has one. Rows for immutable
	// reservations (past, other members') render no control.
	row.Find("a[id], button[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		hint := strings.ToLower(s.AttrOr("class", "") + " " + s.AttrOr("onclick", "") + " " + s.Text())
		if strings.Contains(hint, "cancel") {
			r.CancelToken = s.AttrOr("id", "")
			return false
		}
		return true
	})

	if r.Date == "" && r.TimeRange == "" && r.Activity == "" {
		return portal.Reservation{}, false
	}
	return r, true
}

// parseActivityCell decodes the "activity (court | category)" cell. The
// portal is inconsistent about which side of the pipe carries the court, so
// whichever token looks court-like (contains "court") wins; the other side
// is the category and is dropped.
func parseActivityCell(cell string) (activity, court string) {
	m := activityPattern.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil {
		return "", ""
	}
	activity = strings.TrimSpace(m[1])
	left, right := strings.TrimSpace(m[2]), strings.TrimSpace(m[3])
	if strings.Contains(strings.ToLower(left), "court") {
		return activity, left
	}
	if strings.Contains(strings.ToLower(right), "court") {
		return activity, right
	}
	// Neither side looks court-like; keep the left token, which is the
	// court in the portal's dominant ordering.
	return activity, left
}
