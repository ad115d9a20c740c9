package calendar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/model"
)

func seedState() State {
	return New([]model.Event{
		{ID: "seed", Title: "Team Sync-Up", Date: "2025-06-24", Time: "10:00", Category: model.CategoryWork, Recurrence: model.RecurrenceNone},
	})
}

func TestAddEvent_Single(t *testing.T) {
	s := seedState()

	next, created, err := s.AddEvent(model.Draft{Title: "Lunch", Date: "2025-06-24", Time: "12:00"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Len(t, next.Events, 2)

	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, model.CategoryOther, created[0].Category)
	assert.Equal(t, model.RecurrenceNone, created[0].Recurrence)
	assert.Equal(t, created[0], next.Events[1])
	assert.Len(t, s.Events, 1, "receiver unchanged")
}

func TestAddEvent_Daily(t *testing.T) {
	s := seedState()

	next, created, err := s.AddEvent(model.Draft{Title: "Gym", Date: "2025-01-01", Time: "07:00", Category: model.CategoryPersonal, Recurrence: model.RecurrenceDaily})
	require.NoError(t, err)
	require.Len(t, created, 10)
	assert.Len(t, next.Events, 11)

	ids := make(map[model.EventID]bool)
	for _, ev := range created {
		ids[ev.ID] = true
		assert.Equal(t, model.RecurrenceNone, ev.Recurrence)
	}
	assert.Len(t, ids, 10, "each instance gets its own id")
}

func TestAddEvent_Validation(t *testing.T) {
	s := seedState()

	next, created, err := s.AddEvent(model.Draft{Title: "", Date: "2025-01-01", Time: "09:00"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidEvent))
	assert.Nil(t, created)
	assert.Equal(t, s, next)
}

func TestEditEvent(t *testing.T) {
	s := seedState()
	s, _, err := s.AddEvent(model.Draft{Title: "Lunch", Date: "2025-06-24", Time: "12:00"})
	require.NoError(t, err)
	target := s.Events[1].ID

	edited, err := s.EditEvent(target, model.Draft{Title: "Long lunch", Date: "2025-06-25", Time: "12:30", Category: model.CategoryPersonal, Recurrence: model.RecurrenceWeekly})
	require.NoError(t, err)
	require.Len(t, edited.Events, 2)

	got, ok := edited.Find(target)
	require.True(t, ok)
	assert.Equal(t, "Long lunch", got.Title)
	assert.Equal(t, model.RecurrenceWeekly, got.Recurrence, "edit stores recurrence verbatim")

	orig, _ := s.Find(target)
	assert.Equal(t, "Lunch", orig.Title, "previous state untouched")

	_, err = s.EditEvent("missing", model.Draft{Title: "x", Date: "2025-01-01", Time: "09:00"})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.EditEvent(target, model.Draft{Title: "x"})
	assert.True(t, errors.Is(err, model.ErrInvalidEvent))
}

func TestEditEvent_OnlyTargetsOneOfTwinEvents(t *testing.T) {
	s := New(nil)
	draft := model.Draft{Title: "Standup", Date: "2025-03-01", Time: "09:00"}
	s, _, _ = s.AddEvent(draft)
	s, _, _ = s.AddEvent(draft)
	require.Len(t, s.Events, 2)

	edited, err := s.EditEvent(s.Events[0].ID, model.Draft{Title: "Standup (moved)", Date: "2025-03-01", Time: "09:30"})
	require.NoError(t, err)
	assert.Equal(t, "Standup (moved)", edited.Events[0].Title)
	assert.Equal(t, "Standup", edited.Events[1].Title)

	deleted, err := s.DeleteEvent(s.Events[1].ID)
	require.NoError(t, err)
	require.Len(t, deleted.Events, 1)
	assert.Equal(t, s.Events[0].ID, deleted.Events[0].ID)
}

func TestDeleteEvent(t *testing.T) {
	s := seedState()

	next, err := s.DeleteEvent("seed")
	require.NoError(t, err)
	assert.Empty(t, next.Events)
	assert.Len(t, s.Events, 1)

	_, err = next.DeleteEvent("seed")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImportEvents(t *testing.T) {
	s := seedState()

	next := s.ImportEvents([]model.Event{
		{Title: "a", Date: "2025-01-01", Time: "09:00", Category: model.CategoryOther, Recurrence: model.RecurrenceNone},
		{ID: "seed", Title: "dup id", Date: "2025-01-02", Time: "09:00"},
		{ID: "keep-me", Title: "b", Date: "2025-01-03", Time: "09:00"},
	})
	require.Len(t, next.Events, 4)

	assert.NotEmpty(t, next.Events[1].ID)
	assert.NotEqual(t, model.EventID("seed"), next.Events[2].ID)
	assert.Equal(t, model.EventID("keep-me"), next.Events[3].ID)
	assert.Len(t, s.Events, 1)
}

func TestSetViewAndTheme(t *testing.T) {
	s := seedState()
	assert.Equal(t, ViewMonth, s.View)
	assert.Equal(t, ThemeLight, s.Theme)

	s, err := s.SetView(ViewAgenda)
	require.NoError(t, err)
	assert.Equal(t, ViewAgenda, s.View)

	_, err = s.SetView("Year")
	assert.True(t, errors.Is(err, ErrInvalidView))

	s, err = s.SetTheme(ThemeDark)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, s.Theme)

	_, err = s.SetTheme("sepia")
	assert.True(t, errors.Is(err, ErrInvalidTheme))
}
