package query

import (
	"time"

	"evcal/internal/model"
)

type CategoryCount struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
}

type Summary struct {
	Total      int             `json:"total"`
	Today      int             `json:"today"`
	Recurring  int             `json:"recurring"`
	ByCategory []CategoryCount `json:"byCategory"`
}

// Summarize counts events for the summary panel. "Today" is now's date
// in now's location. Recurring counts events still carrying a
// recurrence; expanded instances never do, but edited and imported
// events may. ByCategory is in first-seen order and keyed by the stored
// label.
func Summarize(events []model.Event, now time.Time) Summary {
	today := model.FormatDate(now)
	s := Summary{
		Total:      len(events),
		ByCategory: make([]CategoryCount, 0),
	}

	index := make(map[model.Category]int)
	for _, ev := range events {
		if ev.Date == today {
			s.Today++
		}
		if ev.Recurrence != model.RecurrenceNone {
			s.Recurring++
		}
		i, ok := index[ev.Category]
		if !ok {
			i = len(s.ByCategory)
			index[ev.Category] = i
			s.ByCategory = append(s.ByCategory, CategoryCount{Category: ev.Category})
		}
		s.ByCategory[i].Count++
	}
	return s
}
