// File: internal/portal/extract/grid.go
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/courtbook/internal/portal"
)

// relaxedScanThreshold: when a strict scan yields fewer slots than this, the
// grid is re-scanned with the relaxed rule. Grids for a normal day carry
// dozens of cells; near-zero results usually mean the strict classifier is
// fighting a markup drift, not an actually full schedule.
const relaxedScanThreshold = 3

// blockedClasses mark a cell as not bookable.
var blockedClasses = []string{"reserved", "restricted", "blocked", "closed"}

// Slots extracts the open grid cells, preserving document order. A cell
// qualifies when it carries a start-time marker and is not flagged
// reserved/restricted/blocked. If fewer than relaxedScanThreshold slots
// survive the strict pass, the grid is re-scanned treating cells that look
// both reserved and open as available; that widening is a documented
// heuristic, not a guarantee, and is logged when it fires.
func (e *Extractor) Slots(doc *goquery.Document) []portal.Slot {
	strict := e.scanSlots(doc, false)
	if len(strict) >= relaxedScanThreshold {
		return strict
	}

	relaxed := e.scanSlots(doc, true)
	if len(relaxed) > len(strict) {
		e.log.Warn("Strict grid scan found almost nothing; relaxed re-scan widened the result.",
			zap.Int("strict", len(strict)), zap.Int("relaxed", len(relaxed)))
		return relaxed
	}
	return strict
}

func (e *Extractor) scanSlots(doc *goquery.Document, relaxed bool) []portal.Slot {
	var slots []portal.Slot
	doc.Find("[data-slot-time]").Each(func(_ int, s *goquery.Selection) {
		class := strings.ToLower(s.AttrOr("class", ""))
		blocked := false
		for _, c := range blockedClasses {
			if strings.Contains(class, c) {
				blocked = true
				break
			}
		}
		if blocked {
			// Relaxed rule: a cell flagged reserved-looking but also
			// open-looking counts as available.
			if !relaxed || !strings.Contains(class, "open") {
				return
			}
		}

		court := strings.TrimSpace(s.AttrOr("data-court", ""))
		if court == "" {
			court = strings.TrimSpace(s.Find(".court-name").First().Text())
		}
		if court == "" {
			court = strings.TrimSpace(s.Text())
		}

		slots = append(slots, portal.Slot{
			AreaID:     s.AttrOr("data-area-id", ""),
			CourtLabel: court,
			StartTime:  strings.TrimSpace(s.AttrOr("data-slot-time", "")),
			EndTime:    strings.TrimSpace(s.AttrOr("data-end-time", "")),
			RawID:      s.AttrOr("id", ""),
		})
	})
	return slots
}
