// Package query derives everything the views show from the event
// collection: per-day buckets, conflict flags, search filtering, agenda
// order and summary counts. All functions are pure and tolerate
// malformed dates and times.
package query

import (
	"sort"
	"strings"
	"time"

	"evcal/internal/model"
)

// ConflictWindow is the clock-time distance under which two events on
// the same day are flagged.
const ConflictWindow = 60

// EventsOnDate returns the events whose date equals date, in collection
// order.
func EventsOnDate(events []model.Event, date string) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Date == date {
			out = append(out, ev)
		}
	}
	return out
}

// IsConflicting reports whether another element of sameDay starts less
// than ConflictWindow minutes of clock time away from ev. The element that
// is ev itself is skipped by id, or for id-less events by the first
// identical entry; content-equal siblings still count as others.
func IsConflicting(ev model.Event, sameDay []model.Event) bool {
	mine, ok := model.ClockMinutes(ev.Time).Get()
	if !ok {
		return false
	}

	skipped := false
	for _, other := range sameDay {
		if !skipped && isSelf(ev, other) {
			skipped = true
			continue
		}
		if other.Date != ev.Date {
			continue
		}
		theirs, ok := model.ClockMinutes(other.Time).Get()
		if !ok {
			continue
		}
		if abs(mine-theirs) < ConflictWindow {
			return true
		}
	}
	return false
}

// FlagConflicts returns one flag per element of dayEvents, comparing
// elements by position.
func FlagConflicts(dayEvents []model.Event) []bool {
	flags := make([]bool, len(dayEvents))
	mins := make([]int, len(dayEvents))
	valid := make([]bool, len(dayEvents))
	for i, ev := range dayEvents {
		mins[i], valid[i] = model.ClockMinutes(ev.Time).Get()
	}

	for i := range dayEvents {
		if !valid[i] {
			continue
		}
		for j := i + 1; j < len(dayEvents); j++ {
			if !valid[j] || dayEvents[i].Date != dayEvents[j].Date {
				continue
			}
			if abs(mins[i]-mins[j]) < ConflictWindow {
				flags[i] = true
				flags[j] = true
			}
		}
	}
	return flags
}

func isSelf(ev, other model.Event) bool {
	if ev.ID != "" {
		return ev.ID == other.ID
	}
	return ev == other
}

// MatchesQuery is a case-insensitive substring match on title, time,
// category and the long date label ("Jun 24, 2025"). An empty query
// matches everything.
func MatchesQuery(ev model.Event, q string) bool {
	q = strings.ToLower(q)
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(ev.Title), q) ||
		strings.Contains(strings.ToLower(ev.Time), q) ||
		strings.Contains(strings.ToLower(string(ev.Category)), q) {
		return true
	}
	label := model.DateLabel(ev.Date)
	return label != "" && strings.Contains(strings.ToLower(label), q)
}

// FilterEvents keeps the events matching q, preserving order. Search,
// export and the summary panel all go through it.
func FilterEvents(events []model.Event, q string) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if MatchesQuery(ev, q) {
			out = append(out, ev)
		}
	}
	return out
}

// AgendaOrder returns a copy of events sorted ascending by date and time.
// The sort is stable. Events without a valid instant sort after every
// valid one, in collection order.
func AgendaOrder(events []model.Event) []model.Event {
	type keyed struct {
		ev    model.Event
		at    time.Time
		valid bool
	}

	items := make([]keyed, len(events))
	for i, ev := range events {
		at, ok := ev.Instant(time.UTC).Get()
		items[i] = keyed{ev: ev, at: at, valid: ok}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.valid != b.valid {
			return a.valid
		}
		if !a.valid {
			return false
		}
		return a.at.Before(b.at)
	})

	out := make([]model.Event, len(items))
	for i, it := range items {
		out[i] = it.ev
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
