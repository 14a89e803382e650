// Package dateutils provides common date parsing and formatting helpers.
package dateutils

import (
	"fmt"
	"strings"
	"time"

	"dlev/finsync/internal/models"
)

// Layouts commonly produced by institution exports, tried in order.
// Day-first layouts come before US layouts because every supported
// institution reports dates day-first.
var commonLayouts = []string{
	models.DateLayout, // 2006-01-02
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2.1.2006",
	"01/02/2006",
}

// ParseDate parses a date string using the known layouts and truncates the
// result to day granularity.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range commonLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// Day truncates t to midnight UTC, the granularity all persisted dates use.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDay renders t as an ISO day string.
func FormatDay(t time.Time) string {
	return t.Format(models.DateLayout)
}
