package model

import (
	"strings"

	"github.com/google/uuid"
)

// EventID is an opaque identifier assigned when an event enters the
// collection. It survives JSON storage and, optionally, CSV round-trips.
type EventID string

// NewEventID returns a fresh random identifier.
func NewEventID() EventID {
	return EventID(uuid.NewString())
}

// ParseEventID accepts only well-formed UUID text.
func ParseEventID(s string) (EventID, bool) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return EventID(u.String()), true
}

func (id EventID) String() string { return string(id) }

type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryMeeting  Category = "meeting"
	CategoryEvent    Category = "event"
	CategoryOther    Category = "other"
)

// Categories lists the known categories in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryMeeting, CategoryEvent, CategoryOther}

// Known reports whether c is one of the fixed categories.
func (c Category) Known() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Display returns the category an event is shown under. Unknown values
// are kept in storage but rendered as "other".
func (c Category) Display() Category {
	if c.Known() {
		return c
	}
	return CategoryOther
}

type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Event is the only persisted entity. Date is YYYY-MM-DD, Time is HH:MM
// on a 24-hour clock. Both are kept as text so malformed values loaded
// from storage survive untouched.
type Event struct {
	ID         EventID    `json:"id"`
	Title      string     `json:"title"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Category   Category   `json:"category"`
	Recurrence Recurrence `json:"recurrence"`
}

// Draft is user-submitted event data before recurrence expansion.
type Draft struct {
	Title      string     `json:"title"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	Category   Category   `json:"category"`
	Recurrence Recurrence `json:"recurrence"`
}

// SameSlot reports whether two events share title, date and time. This
// was the only notion of identity before ids existed.
func (e Event) SameSlot(o Event) bool {
	return e.Title == o.Title && e.Date == o.Date && e.Time == o.Time
}

// Draft strips the identity from e.
func (e Event) Draft() Draft {
	return Draft{
		Title:      e.Title,
		Date:       e.Date,
		Time:       e.Time,
		Category:   e.Category,
		Recurrence: e.Recurrence,
	}
}

// Event builds an instance from d with the given id.
func (d Draft) Event(id EventID) Event {
	return Event{
		ID:         id,
		Title:      d.Title,
		Date:       d.Date,
		Time:       d.Time,
		Category:   d.Category,
		Recurrence: d.Recurrence,
	}
}

// WithDefaults fills the optional fields the way the entry form does.
func (d Draft) WithDefaults() Draft {
	if strings.TrimSpace(string(d.Category)) == "" {
		d.Category = CategoryOther
	}
	if strings.TrimSpace(string(d.Recurrence)) == "" {
		d.Recurrence = RecurrenceNone
	}
	return d
}

// SeedEvents is the collection used on first run.
func SeedEvents() []Event {
	return []Event{
		{
			ID:         NewEventID(),
			Title:      "Team Sync-Up",
			Date:       "2025-06-24",
			Time:       "10:00",
			Category:   CategoryWork,
			Recurrence: RecurrenceNone,
		},
	}
}
