package query

import (
	"time"

	"evcal/internal/model"
)

// DayEvent is one entry of a day bucket with its display attributes.
type DayEvent struct {
	model.Event
	Display     model.Category `json:"display"`
	Conflicting bool           `json:"conflicting"`
}

type DayView struct {
	Date   string     `json:"date"`
	Today  bool       `json:"today"`
	Events []DayEvent `json:"events"`
}

// MonthView holds every day of one month. LeadingBlanks is the number of
// empty cells before the 1st in a Sunday-first grid.
type MonthView struct {
	Year          int       `json:"year"`
	Month         string    `json:"month"`
	LeadingBlanks int       `json:"leadingBlanks"`
	Days          []DayView `json:"days"`
}

// Day builds the bucket for one date with conflict flags.
func Day(events []model.Event, date string, now time.Time) DayView {
	onDay := EventsOnDate(events, date)
	flags := FlagConflicts(onDay)

	out := DayView{
		Date:   date,
		Today:  date == model.FormatDate(now),
		Events: make([]DayEvent, len(onDay)),
	}
	for i, ev := range onDay {
		out.Events[i] = DayEvent{Event: ev, Display: ev.Category.Display(), Conflicting: flags[i]}
	}
	return out
}

// Week returns seven day buckets starting at the most recent weekStart
// on or before anchor.
func Week(events []model.Event, anchor time.Time, weekStart time.Weekday, now time.Time) []DayView {
	first := startOfDay(anchor)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	first = first.AddDate(0, 0, -offset)

	days := make([]DayView, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, Day(events, model.FormatDate(first.AddDate(0, 0, i)), now))
	}
	return days
}

// Month returns a bucket for every day in anchor's month.
func Month(events []model.Event, anchor time.Time, now time.Time) MonthView {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	n := first.AddDate(0, 1, -1).Day()

	mv := MonthView{
		Year:          first.Year(),
		Month:         first.Month().String(),
		LeadingBlanks: int(first.Weekday()),
		Days:          make([]DayView, 0, n),
	}
	for d := 0; d < n; d++ {
		mv.Days = append(mv.Days, Day(events, model.FormatDate(first.AddDate(0, 0, d)), now))
	}
	return mv
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
