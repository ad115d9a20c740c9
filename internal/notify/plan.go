// Package notify turns the event collection into desktop reminders.
//
// Plan is pure: it decides which events are about to start. Scheduler
// owns the timers and keeps at most one pending reminder per event, so
// re-planning after every change does not announce an event twice.
package notify

import (
	"fmt"
	"time"

	"evcal/internal/model"
)

// MaxLead is the widest reminder window.
const MaxLead = 5 * time.Minute

// ReminderTitle is the notification summary line.
const ReminderTitle = "📅 Event Reminder"

// Reminder is one scheduled notification. FireAt is the event's start.
type Reminder struct {
	EventID model.EventID
	FireAt  time.Time
	Title   string
	Time    string
	Date    string
}

// Body is the notification text, e.g. "Standup at 09:00 on 2025-03-01".
func (r Reminder) Body() string {
	return fmt.Sprintf("%s at %s on %s", r.Title, r.Time, r.Date)
}

func (r Reminder) same(o Reminder) bool {
	return r.EventID == o.EventID && r.FireAt.Equal(o.FireAt) && r.Body() == o.Body()
}

// ClampLead bounds lead to (0, MaxLead].
func ClampLead(lead time.Duration) time.Duration {
	if lead <= 0 || lead > MaxLead {
		return MaxLead
	}
	return lead
}

// Plan returns a reminder for every event starting strictly after now
// and no more than lead later, in collection order. Event date and time
// are read in loc. Events without a valid instant are ignored.
func Plan(events []model.Event, now time.Time, lead time.Duration, loc *time.Location) []Reminder {
	lead = ClampLead(lead)
	if loc == nil {
		loc = time.Local
	}

	out := make([]Reminder, 0)
	for _, ev := range events {
		r, ok := reminderFor(ev, loc)
		if !ok {
			continue
		}
		until := r.FireAt.Sub(now)
		if until > 0 && until <= lead {
			out = append(out, r)
		}
	}
	return out
}

func reminderFor(ev model.Event, loc *time.Location) (Reminder, bool) {
	start, ok := ev.Instant(loc).Get()
	if !ok {
		return Reminder{}, false
	}
	return Reminder{
		EventID: ev.ID,
		FireAt:  start,
		Title:   ev.Title,
		Time:    ev.Time,
		Date:    ev.Date,
	}, true
}
