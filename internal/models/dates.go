package models

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date wire format used for due dates.
const DateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDate reads a due date written either as YYYY-MM-DD or as a full
// timestamp. Plain dates land on midnight in loc. Empty or unparsable input
// yields nil.
func ParseDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return &t
	}
	if t := ParseTimestamp(s, loc); t != nil {
		d := StartOfDay(t.In(loc))
		return &d
	}
	return nil
}

// ParseTimestamp reads a full timestamp in any of the accepted layouts.
// Timestamps without an offset are read as wall time in loc (nil means local).
func ParseTimestamp(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// FormatDate renders the calendar day of t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a falls on the same calendar day as b, in b's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayBefore reports whether a falls on a calendar day strictly before b's day,
// in b's location.
func DayBefore(a, b time.Time) bool {
	return StartOfDay(a.In(b.Location())).Before(StartOfDay(b))
}
