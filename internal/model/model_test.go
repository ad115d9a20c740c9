package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2025-01-01", true},
		{"2024-02-29", true},
		{"2025-02-29", false},
		{"2025-13-40", false},
		{"2025-1-01", false},
		{"20250101", false},
		{"", false},
		{"2025-01-01T10:00", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidDate(tt.in), tt.in)
	}
}

func TestValidTime(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"09:00", true},
		{"9:00", true},
		{"23:59", true},
		{"00:00", true},
		{"24:00", false},
		{"12:60", false},
		{"12:5", false},
		{"noon", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTime(tt.in), tt.in)
	}
}

func TestClockMinutes(t *testing.T) {
	assert.Equal(t, 7*60+5, ClockMinutes("7:05").MustGet())
	assert.Equal(t, 23*60+59, ClockMinutes("23:59").MustGet())
	assert.False(t, ClockMinutes("25:00").IsPresent())
}

func TestInstant(t *testing.T) {
	loc := time.FixedZone("test", 3*3600)

	got, ok := Instant("2025-03-01", "09:30", loc).Get()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, loc), got)

	assert.False(t, Instant("2025-03-01", "9h30", loc).IsPresent())
	assert.False(t, Instant("yesterday", "09:30", loc).IsPresent())
}

func TestDateLabel(t *testing.T) {
	assert.Equal(t, "Jun 24, 2025", DateLabel("2025-06-24"))
	assert.Equal(t, "Jan 1, 2025", DateLabel("2025-01-01"))
	assert.Equal(t, "", DateLabel("not a date"))
}

func TestCategoryDisplay(t *testing.T) {
	assert.Equal(t, CategoryMeeting, CategoryMeeting.Display())
	assert.Equal(t, CategoryOther, Category("holiday").Display())
	assert.Equal(t, CategoryOther, Category("").Display())
}

func TestParseEventID(t *testing.T) {
	id := NewEventID()
	parsed, ok := ParseEventID(" " + id.String() + " ")
	require.True(t, ok)
	assert.Equal(t, id, parsed)

	_, ok = ParseEventID("event-1")
	assert.False(t, ok)
}

func TestDraftValidate(t *testing.T) {
	ok := Draft{Title: "Gym", Date: "2025-01-01", Time: "07:00"}
	assert.NoError(t, ok.Validate())

	err := Draft{Title: " ", Date: "2025-01-01"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"title", "time"}, verr.Missing)
	assert.Empty(t, verr.Invalid)

	err = Draft{Title: "X", Date: "2025-13-40", Time: "25:00"}.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"date", "time"}, verr.Invalid)
	assert.Contains(t, err.Error(), "malformed date, time")
}

func TestDraftRoundTrip(t *testing.T) {
	d := Draft{Title: "Lunch", Date: "2025-05-05", Time: "12:00"}.WithDefaults()
	assert.Equal(t, CategoryOther, d.Category)
	assert.Equal(t, RecurrenceNone, d.Recurrence)

	id := NewEventID()
	ev := d.Event(id)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, d, ev.Draft())
}

func TestSameSlot(t *testing.T) {
	a := Event{ID: "a", Title: "Standup", Date: "2025-03-01", Time: "09:00", Category: CategoryWork}
	b := Event{ID: "b", Title: "Standup", Date: "2025-03-01", Time: "09:00", Category: CategoryMeeting}
	c := Event{ID: "a", Title: "Standup", Date: "2025-03-01", Time: "09:15"}

	assert.True(t, a.SameSlot(b))
	assert.False(t, a.SameSlot(c))
}

func TestSeedEvents(t *testing.T) {
	seed := SeedEvents()
	require.Len(t, seed, 1)
	assert.Equal(t, "Team Sync-Up", seed[0].Title)
	assert.Equal(t, "2025-06-24", seed[0].Date)
	assert.NotEmpty(t, seed[0].ID)
}
