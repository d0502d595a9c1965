package calendar

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02/01/06",
	"2/1/06",
}

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate reads the date spellings found in the sources: ISO dates and
// timestamps, day-first slashed or dashed dates, and spreadsheet serial
// numbers. With dayFirst false only ISO forms and serials are tried.
func ParseDate(s string, dayFirst bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range isoLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return truncate(t), true
		}
	}
	if dayFirst {
		for _, l := range dayFirstLayouts {
			if t, err := time.Parse(l, s); err == nil {
				return truncate(t), true
			}
		}
	}
	if t, ok := serial(s); ok {
		return t, true
	}
	return time.Time{}, false
}

// serial converts a spreadsheet day number (1900 date system).
func serial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	base := date(1899, time.December, 30)
	return base.AddDate(0, 0, int(math.Floor(f))), true
}

func truncate(t time.Time) time.Time {
	return date(t.Year(), t.Month(), t.Day())
}

// ISO formats d as yyyy-mm-dd.
func ISO(d time.Time) string { return key(d) }
