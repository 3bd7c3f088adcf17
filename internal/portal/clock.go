// File: internal/portal/clock.go
package portal

import (
	"strconv"
	"strings"
)

// NormalizeClock reduces a displayed time to a canonical comparable form:
// upper case, no spaces, no leading zero on the hour. "09:00 am", "9:00 AM"
// and "9:00AM" all normalize to "9:00AM"; the 24-hour "09:00" becomes
// "9:00". It does not convert between 12- and 24-hour representations --
// the grid and the user are expected to speak the same convention.
func NormalizeClock(s string) string {
	t := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	t = strings.TrimLeft(t, "0")
	if strings.HasPrefix(t, ":") {
		// "00:30" trimmed to ":30"; the hour really was zero.
		t = "0" + t
	}
	return t
}

// ClockMinutes converts a displayed time to minutes after midnight, for
// sorting alternative slots by proximity to a requested time. The second
// return is false when the string is not a recognizable clock time.
func ClockMinutes(s string) (int, bool) {
	t := NormalizeClock(s)

	meridiem := ""
	switch {
	case strings.HasSuffix(t, "AM"):
		meridiem = "AM"
		t = strings.TrimSuffix(t, "AM")
	case strings.HasSuffix(t, "PM"):
		meridiem = "PM"
		t = strings.TrimSuffix(t, "PM")
	}

	parts := strings.SplitN(t, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, false
		}
	}
	return hour*60 + minute, true
}
