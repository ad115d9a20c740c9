package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcal/internal/model"
)

func TestDay(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "1", Title: "a", Date: "2025-03-01", Time: "09:00", Category: model.CategoryMeeting},
		{ID: "2", Title: "b", Date: "2025-03-01", Time: "09:30", Category: "holiday"},
		{ID: "3", Title: "c", Date: "2025-03-02", Time: "09:30", Category: model.CategoryWork},
	}

	day := Day(events, "2025-03-01", now)
	assert.True(t, day.Today)
	require.Len(t, day.Events, 2)
	assert.True(t, day.Events[0].Conflicting)
	assert.True(t, day.Events[1].Conflicting)
	assert.Equal(t, model.CategoryMeeting, day.Events[0].Display)
	assert.Equal(t, model.CategoryOther, day.Events[1].Display)
	assert.Equal(t, model.Category("holiday"), day.Events[1].Category)

	next := Day(events, "2025-03-02", now)
	assert.False(t, next.Today)
	require.Len(t, next.Events, 1)
	assert.False(t, next.Events[0].Conflicting)
}

func TestWeek(t *testing.T) {
	// Wednesday.
	anchor := time.Date(2025, 6, 25, 13, 0, 0, 0, time.UTC)
	events := []model.Event{{ID: "1", Title: "Sync", Date: "2025-06-24", Time: "10:00", Category: model.CategoryWork}}

	sunday := Week(events, anchor, time.Sunday, anchor)
	require.Len(t, sunday, 7)
	assert.Equal(t, "2025-06-22", sunday[0].Date)
	assert.Equal(t, "2025-06-28", sunday[6].Date)
	assert.Len(t, sunday[2].Events, 1)
	assert.True(t, sunday[3].Today)

	monday := Week(events, anchor, time.Monday, anchor)
	assert.Equal(t, "2025-06-23", monday[0].Date)
	assert.Equal(t, "2025-06-29", monday[6].Date)

	onStart := Week(events, time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), time.Sunday, anchor)
	assert.Equal(t, "2025-06-22", onStart[0].Date)
}

func TestMonth(t *testing.T) {
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "1", Title: "Leap", Date: "2024-02-29", Time: "12:00"},
		{ID: "2", Title: "March", Date: "2024-03-01", Time: "12:00"},
	}

	mv := Month(events, now, now)
	assert.Equal(t, 2024, mv.Year)
	assert.Equal(t, "February", mv.Month)
	assert.Equal(t, 4, mv.LeadingBlanks, "Feb 1 2024 was a Thursday")
	require.Len(t, mv.Days, 29)
	assert.Equal(t, "2024-02-01", mv.Days[0].Date)
	assert.Len(t, mv.Days[28].Events, 1)
	assert.True(t, mv.Days[9].Today)
}
