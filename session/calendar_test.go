package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCalendar(t *testing.T) {
	t.Parallel()

	cal := DefaultCalendar()

	tests := []struct {
		day  string
		open bool
	}{
		{"2024-01-10", true},
		{"2024-01-13", false},
		{"2024-01-14", false},
		{"2024-07-04", false},
		{"2025-12-25", false},
		{"2025-12-26", true},
		{"2026-11-26", false},
	}
	for _, tt := range tests {
		d, err := time.Parse(dateLayout, tt.day)
		require.NoError(t, err)
		assert.Equal(t, tt.open, cal.Open(d), tt.day)
	}
}

func TestParseCalendar(t *testing.T) {
	t.Parallel()

	cal, err := ParseCalendar([]byte("weekdays: [Sunday, monday]\nholidays: [\"2024-01-08\"]\n"))
	require.NoError(t, err)

	assert.True(t, cal.Open(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cal.Open(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsHoliday(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cal.Open(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)))
}

func TestParseCalendarErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no weekdays", "holidays: []\n"},
		{"bad weekday", "weekdays: [funday]\n"},
		{"bad holiday", "weekdays: [monday]\nholidays: [\"24/12/2024\"]\n"},
		{"not yaml", "weekdays: [monday\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCalendar([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCalendar(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weekdays: [saturday]\n"), 0o644))

	cal, err := LoadCalendar(path)
	require.NoError(t, err)
	assert.True(t, cal.Open(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)))

	_, err = LoadCalendar(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClockUsesCustomCalendar(t *testing.T) {
	t.Parallel()

	cal, err := ParseCalendar([]byte("weekdays: [saturday]\n"))
	require.NoError(t, err)

	fc := &fakeClock{t: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
	c, err := New(8, 20, time.Minute,
		WithClock(fc.Now), WithSleeper(fc.Sleep), WithLocation(time.UTC), WithCalendar(cal))
	require.NoError(t, err)

	require.NoError(t, c.AwaitSessionOpen(t.Context()))
	assert.True(t, fc.t.Equal(time.Date(2024, 1, 13, 8, 0, 0, 0, time.UTC)), "woke at %s", fc.t)
}
