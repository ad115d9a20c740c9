package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/calendar"
	"evcal/internal/model"
)

func TestFileKV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	_, ok, err := kv.Get(KeyEvents)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(KeyView, "Week"))
	v, ok, err := kv.Get(KeyView)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Week", v)

	info, err := os.Stat(filepath.Join(dir, KeyView))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, kv.Set(KeyView, "Agenda"))
	v, _, _ = kv.Get(KeyView)
	assert.Equal(t, "Agenda", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, kv.Delete(KeyView))
	require.NoError(t, kv.Delete(KeyView))
	_, ok, _ = kv.Get(KeyView)
	assert.False(t, ok)

	assert.Error(t, kv.Set("../escape", "x"))
	_, _, err = kv.Get("a/b")
	assert.Error(t, err)
}

func TestNewFileKV_EmptyDir(t *testing.T) {
	_, err := NewFileKV("")
	assert.Error(t, err)
}

func TestRepository_FirstRunUsesSeed(t *testing.T) {
	repo := NewRepository(NewMemKV())

	state := repo.Load()
	require.Len(t, state.Events, 1)
	assert.Equal(t, "Team Sync-Up", state.Events[0].Title)
	assert.Equal(t, calendar.ViewMonth, state.View)
	assert.Equal(t, calendar.ThemeLight, state.Theme)
}

func TestRepository_CorruptJSONFallsBackToSeed(t *testing.T) {
	for _, raw := range []string{"{not json", "null", `{"title":"x"}`, ""} {
		kv := NewMemKV()
		require.NoError(t, kv.Set(KeyEvents, raw))

		events := NewRepository(kv).LoadEvents()
		require.Len(t, events, 1, "input %q", raw)
		assert.Equal(t, "Team Sync-Up", events[0].Title)
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(kv)

	state := calendar.New([]model.Event{
		{ID: model.NewEventID(), Title: "Standup", Date: "2025-03-01", Time: "09:00", Category: model.CategoryMeeting, Recurrence: model.RecurrenceNone},
		{ID: model.NewEventID(), Title: "Odd", Date: "2025-02-30", Time: "9am", Category: "holiday", Recurrence: model.RecurrenceNone},
	})
	state.View = calendar.ViewAgenda
	state.Theme = calendar.ThemeDark
	require.NoError(t, repo.Save(state))

	loaded := NewRepository(kv).Load()
	assert.Equal(t, state, loaded)
}

func TestRepository_EmptyCollectionStaysEmpty(t *testing.T) {
	kv := NewMemKV()
	repo := NewRepository(kv)

	require.NoError(t, repo.SaveEvents(nil))
	raw, _, _ := kv.Get(KeyEvents)
	assert.Equal(t, "[]", raw)
	assert.Empty(t, repo.LoadEvents())
}

func TestRepository_LegacyRecordsGetIDs(t *testing.T) {
	kv := NewMemKV()
	legacy := `[{"title":"Standup","date":"2025-03-01","time":"09:00","category":"work","recurrence":"none"},` +
		`{"title":"Standup","date":"2025-03-01","time":"09:00","category":"work","recurrence":"none"}]`
	require.NoError(t, kv.Set(KeyEvents, legacy))

	events := NewRepository(kv).LoadEvents()
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEmpty(t, events[1].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.True(t, events[0].SameSlot(events[1]))
}

func TestRepository_UnknownViewAndTheme(t *testing.T) {
	kv := NewMemKV()
	require.NoError(t, kv.Set(KeyView, "Year"))
	require.NoError(t, kv.Set(KeyTheme, "sepia"))

	repo := NewRepository(kv)
	assert.Equal(t, calendar.ViewMonth, repo.LoadView())
	assert.Equal(t, calendar.ThemeLight, repo.LoadTheme())

	require.NoError(t, kv.Set(KeyView, "Week\n"))
	assert.Equal(t, calendar.ViewWeek, repo.LoadView())
}
