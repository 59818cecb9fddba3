package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nachhilfecal/internal/model"
)

func eventAt(id string, start time.Time, dur time.Duration, recurrence ...string) model.Event {
	end := start.Add(dur)
	return model.Event{
		ID:         id,
		Summary:    "Mathe",
		Start:      &start,
		End:        &end,
		Teacher:    "Meier",
		Student:    "Tom",
		Recurrence: recurrence,
	}
}

func TestExpandRecurringWeekly(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) // a Monday
	events := []model.Event{
		eventAt("base", start, time.Hour, "RRULE:FREQ=WEEKLY;COUNT=10"),
	}

	rangeStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC)

	got := ExpandRecurring(events, rangeStart, rangeEnd, 0)
	require.Len(t, got, 3) // Mar 4, 11, 18

	for i, ev := range got {
		require.NotNil(t, ev.Start)
		want := start.AddDate(0, 0, 7*i)
		assert.True(t, ev.Start.Equal(want), "occurrence %d: got %v want %v", i, ev.Start, want)
		require.NotNil(t, ev.End)
		assert.Equal(t, time.Hour, ev.End.Sub(*ev.Start), "duration preserved")
		assert.Equal(t, "Meier", ev.Teacher, "relational fields carried")
		assert.Empty(t, ev.Recurrence, "occurrences are concrete")
	}

	assert.NotEqual(t, got[0].ID, got[1].ID, "occurrence IDs are distinguishable")
}

func TestExpandRecurringExDate(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		eventAt("base", start, time.Hour,
			"RRULE:FREQ=WEEKLY;COUNT=10",
			"EXDATE:20240311T100000Z",
		),
	}

	got := ExpandRecurring(events,
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC), 0)

	require.Len(t, got, 2) // Mar 11 excluded
	assert.Equal(t, 4, got[0].Start.Day())
	assert.Equal(t, 18, got[1].Start.Day())
}

func TestExpandRecurringPassthrough(t *testing.T) {
	plain := eventAt("plain", time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), time.Hour)
	noStart := model.Event{ID: "broken", Recurrence: []string{"RRULE:FREQ=DAILY"}}
	badRule := eventAt("bad", time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), time.Hour, "RRULE:NOT-A-RULE")

	got := ExpandRecurring([]model.Event{plain, noStart, badRule},
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC), 0)

	require.Len(t, got, 3)
	assert.Equal(t, "plain", got[0].ID)
	assert.Equal(t, "broken", got[1].ID, "unexpandable events stay visible")
	assert.Equal(t, "bad", got[2].ID)
}

func TestExpandRecurringCap(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []model.Event{
		eventAt("daily", start, time.Hour, "RRULE:FREQ=DAILY"),
	}

	got := ExpandRecurring(events, start, start.AddDate(0, 1, 0), 5)
	assert.Len(t, got, 5)
}
