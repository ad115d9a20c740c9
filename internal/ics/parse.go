package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/recurrence"
)

// ParseDrafts reads every VEVENT in r and returns one draft per event,
// with date and time rendered in loc. A plain daily or weekly RRULE
// becomes the draft's recurrence so that adding the draft regenerates
// instances; any other rule imports as a single event. VEVENTs without
// a summary or start are skipped.
func ParseDrafts(r io.Reader, loc *time.Location) ([]model.Draft, error) {
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	drafts := make([]model.Draft, 0)
	for _, ve := range cal.Events() {
		d, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Warn("ics parse: skipping vevent", "uid", ve.Id(), "err", perr)
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Info("ics parse completed", "event_count", len(drafts))
	return drafts, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Draft, error) {
	var d model.Draft

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		d.Title = strings.TrimSpace(p.Value)
	}
	if d.Title == "" {
		return d, errors.New("missing SUMMARY")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return d, errors.New("missing DTSTART")
	}

	var start time.Time
	if allDay(dtStart) {
		t, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
		if err != nil {
			return d, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
		}
		start = t
	} else {
		t, err := ve.GetStartAt()
		if err != nil {
			return d, fmt.Errorf("DTSTART %q: %w", dtStart.Value, err)
		}
		start = t.In(loc)
	}
	d.Date = model.FormatDate(start)
	d.Time = start.Format("15:04")

	d.Category = model.CategoryOther
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		first, _, _ := strings.Cut(p.Value, ",")
		if c := model.Category(strings.ToLower(strings.TrimSpace(first))); c.Known() {
			d.Category = c
		}
	}

	d.Recurrence = model.RecurrenceNone
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		d.Recurrence = recurrence.FromRRule(p.Value)
	}
	return d, nil
}

// allDay reports whether a DTSTART holds a bare date.
func allDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
