package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

const (
	DateLayout  = "2006-01-02"
	LabelLayout = "Jan 2, 2006"
)

var timePattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseDate parses a strict YYYY-MM-DD calendar date at midnight in loc.
func ParseDate(s string, loc *time.Location) mo.Option[time.Time] {
	if loc == nil {
		loc = time.UTC
	}
	if len(s) != len(DateLayout) {
		return mo.None[time.Time]()
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return mo.None[time.Time]()
	}
	return mo.Some(t)
}

// ValidDate reports whether s is a real YYYY-MM-DD date.
func ValidDate(s string) bool {
	return ParseDate(s, time.UTC).IsPresent()
}

// ValidTime reports whether s is an H:MM or HH:MM 24-hour clock time.
func ValidTime(s string) bool {
	return timePattern.MatchString(s)
}

// ClockMinutes returns minutes since midnight for a valid clock time.
func ClockMinutes(s string) mo.Option[int] {
	if !ValidTime(s) {
		return mo.None[int]()
	}
	hh, mm, _ := strings.Cut(s, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return mo.Some(h*60 + m)
}

// Instant combines date and clock time in loc. Events whose date or
// time does not parse have no instant.
func Instant(date, clock string, loc *time.Location) mo.Option[time.Time] {
	day, ok := ParseDate(date, loc).Get()
	if !ok {
		return mo.None[time.Time]()
	}
	mins, ok := ClockMinutes(clock).Get()
	if !ok {
		return mo.None[time.Time]()
	}
	return mo.Some(time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, day.Location()))
}

// Instant is the event's start in loc.
func (e Event) Instant(loc *time.Location) mo.Option[time.Time] {
	return Instant(e.Date, e.Time, loc)
}

// DateLabel renders the date the way the search box sees it, e.g.
// "Jun 24, 2025". Unparseable dates have no label.
func DateLabel(date string) string {
	d, ok := ParseDate(date, time.UTC).Get()
	if !ok {
		return ""
	}
	return d.Format(LabelLayout)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
