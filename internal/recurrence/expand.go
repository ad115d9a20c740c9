// Package recurrence turns a submitted draft into the concrete instances
// that are appended to the collection. Recurrence is a one-shot generation
// directive: instances never remember the rule that produced them.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"evcal/internal/model"
)

const (
	DailyCount  = 10
	WeeklyCount = 5
)

// Expand returns the instances to persist for draft. A draft without
// recurrence comes back unchanged as the only element. "daily" yields
// ten consecutive days; any other value yields five weekly instances.
// Returned events carry no id.
func Expand(draft model.Draft) ([]model.Event, error) {
	// Expansion runs on a zone-free clock so day and week steps never
	// drift across DST changes.
	start, ok := model.Instant(draft.Date, draft.Time, time.UTC).Get()
	if !ok {
		return nil, fmt.Errorf("expand: draft date/time %q %q: %w", draft.Date, draft.Time, model.ErrInvalidEvent)
	}

	if draft.Recurrence == model.RecurrenceNone {
		return []model.Event{draft.Event("")}, nil
	}

	rule, err := rrule.NewRRule(ruleOption(draft.Recurrence, start))
	if err != nil {
		return nil, fmt.Errorf("expand: build rule: %w", err)
	}

	starts := rule.All()
	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		out = append(out, model.Event{
			Title:      draft.Title,
			Date:       model.FormatDate(s),
			Time:       draft.Time,
			Category:   draft.Category,
			Recurrence: model.RecurrenceNone,
		})
	}
	return out, nil
}

func ruleOption(rec model.Recurrence, start time.Time) rrule.ROption {
	if rec == model.RecurrenceDaily {
		return rrule.ROption{Freq: rrule.DAILY, Count: DailyCount, Dtstart: start}
	}
	return rrule.ROption{Freq: rrule.WEEKLY, Count: WeeklyCount, Dtstart: start}
}

// FromRRule maps an iCalendar RRULE value onto the draft recurrence that
// best reproduces it. Only plain daily and weekly rules are recognized;
// everything else is treated as a single event.
func FromRRule(raw string) model.Recurrence {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.RecurrenceNone
	}
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return model.RecurrenceNone
	}
	switch opt.Freq {
	case rrule.DAILY:
		return model.RecurrenceDaily
	case rrule.WEEKLY:
		return model.RecurrenceWeekly
	default:
		return model.RecurrenceNone
	}
}
