// Package view derives everything the dashboard displays from the canonical
// event list: stats, person-scoped filters, orderings and rosters.
//
// Every function is pure and total. Inputs are never mutated; filters and
// sorts always return fresh slices. A single event with an unparsable start
// is skipped by date-bucketed computations but never aborts a batch.
package view

import (
	"sort"
	"time"

	"nachhilfecal/internal/model"
)

// dayStart truncates t to midnight in t's own location.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CountToday counts events whose start falls on ref's calendar date,
// evaluated in ref's location.
func CountToday(events []model.Event, ref time.Time) int {
	from := dayStart(ref)
	to := from.AddDate(0, 0, 1)
	return countBetween(events, from, to)
}

// CountWeek counts events whose start falls within the half-open window
// [ref's midnight, ref's midnight + 7 days). The same convention applies at
// both bounds, so CountToday is always a subset of CountWeek.
func CountWeek(events []model.Event, ref time.Time) int {
	from := dayStart(ref)
	to := from.AddDate(0, 0, 7)
	return countBetween(events, from, to)
}

func countBetween(events []model.Event, from, to time.Time) int {
	n := 0
	for _, ev := range events {
		if !ev.HasStart() {
			continue
		}
		t := ev.Start.In(from.Location())
		if !t.Before(from) && t.Before(to) {
			n++
		}
	}
	return n
}

// ComputeStats returns the dashboard's headline triple for the given
// reference time.
func ComputeStats(events []model.Event, ref time.Time) model.Stats {
	return model.Stats{
		Total: len(events),
		Today: CountToday(events, ref),
		Week:  CountWeek(events, ref),
	}
}

// FilterByPerson returns the events where name exactly equals the resolved
// teacher or student field. Exact match, not substring: "Meier" must not
// pull in "Anna Meierhofer".
func FilterByPerson(events []model.Event, name string) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Teacher == name || ev.Student == name {
			out = append(out, ev)
		}
	}
	return out
}

// FilterBySubjectAndTeacher applies the two dropdown filters conjunctively.
// An empty criterion is a no-op.
func FilterBySubjectAndTeacher(events []model.Event, subject, teacher string) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if subject != "" && ev.Topic != subject {
			continue
		}
		if teacher != "" && ev.Teacher != teacher {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// SortByStart returns a new slice ordered ascending by parsed start time.
// Events without a parsable start sort last; relative order is otherwise
// preserved (stable), so sorting an already sorted list is a no-op.
func SortByStart(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Start, out[j].Start
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	return out
}

// Upcoming returns the events starting strictly after now, soonest first,
// capped to limit. A non-positive limit means no cap.
func Upcoming(events []model.Event, now time.Time, limit int) []model.Event {
	future := make([]model.Event, 0)
	for _, ev := range events {
		if ev.HasStart() && ev.Start.After(now) {
			future = append(future, ev)
		}
	}
	future = SortByStart(future)
	if limit > 0 && len(future) > limit {
		future = future[:limit]
	}
	return future
}

// Students returns the distinct, sorted student names present in events.
func Students(events []model.Event) []string {
	return distinct(events, func(ev model.Event) string { return ev.Student })
}

// Teachers returns the distinct, sorted teacher names present in events.
func Teachers(events []model.Event) []string {
	return distinct(events, func(ev model.Event) string { return ev.Teacher })
}

// Subjects returns the distinct, sorted topics present in events.
func Subjects(events []model.Event) []string {
	return distinct(events, func(ev model.Event) string { return ev.Topic })
}

func distinct(events []model.Event, field func(model.Event) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, ev := range events {
		v := field(ev)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
