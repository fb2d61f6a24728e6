package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultRangeDays is how far past today a chart reaches when no range is
// requested.
const defaultRangeDays = 3

// dateLayouts are tried in order. Layouts without an offset are read in the
// server's local time.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// parseDate parses an ISO-8601 style date or date-time. The date and time may
// be separated by either "T" or a space.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseDateRange reads the start and end query parameters. When either is
// missing the range is today through today plus defaultRangeDays.
func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		start := truncateDay(now)
		return start, start.AddDate(0, 0, defaultRangeDays), nil
	}

	start, err := parseDate(startStr, now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := parseDate(endStr, now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	return start, end, nil
}
