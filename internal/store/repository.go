package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"evcal/internal/calendar"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	KeyEvents = "calendar-events"
	KeyView   = "calendar-view"
	KeyTheme  = "calendar-theme"
)

// Repository maps calendar state onto KV keys. Reads never fail the
// caller because of bad stored data: a missing or corrupt collection
// yields the seed collection, unknown view/theme values the defaults.
type Repository struct {
	kv KV
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Load reads the whole state.
func (r *Repository) Load() calendar.State {
	state := calendar.New(r.LoadEvents())
	state.View = r.LoadView()
	state.Theme = r.LoadTheme()
	return state
}

// Save writes the whole state.
func (r *Repository) Save(state calendar.State) error {
	if err := r.SaveEvents(state.Events); err != nil {
		return err
	}
	if err := r.kv.Set(KeyView, string(state.View)); err != nil {
		return fmt.Errorf("save view: %w", err)
	}
	if err := r.kv.Set(KeyTheme, string(state.Theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// LoadEvents returns the stored collection in stored order. Records
// written before ids existed are given one.
func (r *Repository) LoadEvents() []model.Event {
	raw, ok, err := r.kv.Get(KeyEvents)
	if err != nil {
		appLog.Error("store: read events failed; using seed", err)
		return model.SeedEvents()
	}
	if !ok {
		appLog.Info("store: no stored events; using seed")
		return model.SeedEvents()
	}

	events, err := DecodeEvents([]byte(raw))
	if err != nil {
		appLog.Warn("store: stored events are corrupt; using seed", "err", err, "bytes", len(raw))
		return model.SeedEvents()
	}

	migrated := 0
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = model.NewEventID()
			migrated++
		}
	}
	if migrated > 0 {
		appLog.Info("store: assigned ids to legacy events", "count", migrated)
	}
	return events
}

func (r *Repository) SaveEvents(events []model.Event) error {
	data, err := EncodeEvents(events)
	if err != nil {
		return err
	}
	if err := r.kv.Set(KeyEvents, string(data)); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}

func (r *Repository) LoadView() calendar.View {
	raw, ok, err := r.kv.Get(KeyView)
	if err != nil || !ok {
		return calendar.ViewMonth
	}
	v := calendar.View(strings.TrimSpace(raw))
	if !v.Valid() {
		appLog.Warn("store: unknown view; using Month", "view", raw)
		return calendar.ViewMonth
	}
	return v
}

func (r *Repository) LoadTheme() calendar.Theme {
	raw, ok, err := r.kv.Get(KeyTheme)
	if err != nil || !ok {
		return calendar.ThemeLight
	}
	t := calendar.Theme(strings.TrimSpace(raw))
	if !t.Valid() {
		return calendar.ThemeLight
	}
	return t
}

// EncodeEvents serializes the collection as a JSON array. A nil slice is
// written as [] so an emptied calendar does not come back as the seed.
func EncodeEvents(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return data, nil
}

// DecodeEvents parses a JSON array of events. A JSON null is an error,
// since no writer produces it.
func DecodeEvents(data []byte) ([]model.Event, error) {
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if events == nil {
		return nil, fmt.Errorf("decode events: not an array")
	}
	return events, nil
}
