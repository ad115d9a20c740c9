// Package ics converts the event collection to and from iCalendar.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	productID = "-//evcal//Event Calendar//EN"

	// EventLength is the DTEND offset written for every event; the
	// collection itself has no duration.
	EventLength = time.Hour
)

// Export writes events as a VCALENDAR. Each event's date and time are
// read in loc. Events without a valid instant are skipped.
func Export(w io.Writer, events []model.Event, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	stamp := time.Now().UTC()
	skipped := 0
	for _, ev := range events {
		start, ok := ev.Instant(loc).Get()
		if !ok {
			skipped++
			continue
		}

		uid := ev.ID
		if uid == "" {
			uid = model.NewEventID()
		}
		vev := cal.AddEvent(uid.String())
		vev.SetDtStampTime(stamp)
		vev.SetSummary(ev.Title)
		vev.SetStartAt(start)
		vev.SetEndAt(start.Add(EventLength))
		if ev.Category != "" {
			vev.AddProperty(ical.ComponentPropertyCategories, string(ev.Category))
		}
	}
	if skipped > 0 {
		appLog.Warn("ics export: skipped events without a valid date/time", "count", skipped)
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("ics export: %w", err)
	}
	return nil
}
