// Package calendar holds the application state as an immutable value.
// Every command returns a new State; the receiver and its event slice are
// never modified, so a view rendered from an older State stays valid.
// Persisting the result is the caller's job.
package calendar

import (
	"errors"
	"fmt"

	"evcal/internal/model"
	"evcal/internal/recurrence"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidView  = errors.New("invalid view")
	ErrInvalidTheme = errors.New("invalid theme")
)

type View string

const (
	ViewMonth  View = "Month"
	ViewWeek   View = "Week"
	ViewAgenda View = "Agenda"
)

func (v View) Valid() bool {
	return v == ViewMonth || v == ViewWeek || v == ViewAgenda
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type State struct {
	Events []model.Event
	View   View
	Theme  Theme
}

// New returns a State over events with default view and theme.
func New(events []model.Event) State {
	return State{Events: events, View: ViewMonth, Theme: ThemeLight}
}

// Find returns the event with id.
func (s State) Find(id model.EventID) (model.Event, bool) {
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// AddEvent validates and expands draft, assigns ids to the instances and
// appends them. The created instances are returned alongside.
func (s State) AddEvent(draft model.Draft) (State, []model.Event, error) {
	draft = draft.WithDefaults()
	if err := draft.Validate(); err != nil {
		return s, nil, err
	}

	instances, err := recurrence.Expand(draft)
	if err != nil {
		return s, nil, err
	}
	for i := range instances {
		instances[i].ID = model.NewEventID()
	}

	next := s
	next.Events = appendCopy(s.Events, instances...)
	return next, instances, nil
}

// EditEvent replaces the event with id by draft, keeping the id. The
// draft is stored as given; no recurrence expansion happens on edit.
func (s State) EditEvent(id model.EventID, draft model.Draft) (State, error) {
	draft = draft.WithDefaults()
	if err := draft.Validate(); err != nil {
		return s, err
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return s, fmt.Errorf("edit %s: %w", id, ErrNotFound)
	}

	events := appendCopy(nil, s.Events...)
	events[idx] = draft.Event(id)

	next := s
	next.Events = events
	return next, nil
}

// DeleteEvent removes the event with id.
func (s State) DeleteEvent(id model.EventID) (State, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return s, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	events := make([]model.Event, 0, len(s.Events)-1)
	events = append(events, s.Events[:idx]...)
	events = append(events, s.Events[idx+1:]...)

	next := s
	next.Events = events
	return next, nil
}

// ImportEvents appends already validated events, giving fresh ids to
// those without one or whose id is already taken.
func (s State) ImportEvents(events []model.Event) State {
	taken := make(map[model.EventID]struct{}, len(s.Events)+len(events))
	for _, ev := range s.Events {
		taken[ev.ID] = struct{}{}
	}

	added := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if _, dup := taken[ev.ID]; ev.ID == "" || dup {
			ev.ID = model.NewEventID()
		}
		taken[ev.ID] = struct{}{}
		added = append(added, ev)
	}

	next := s
	next.Events = appendCopy(s.Events, added...)
	return next
}

func (s State) SetView(v View) (State, error) {
	if !v.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidView, v)
	}
	next := s
	next.View = v
	return next, nil
}

func (s State) SetTheme(t Theme) (State, error) {
	if !t.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidTheme, t)
	}
	next := s
	next.Theme = t
	return next, nil
}

func (s State) indexOf(id model.EventID) int {
	if id == "" {
		return -1
	}
	for i, ev := range s.Events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func appendCopy(base []model.Event, more ...model.Event) []model.Event {
	out := make([]model.Event, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}
