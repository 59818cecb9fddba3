package webhook

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "nachhilfecal/internal/log"
	"nachhilfecal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandRecurring replaces events that carry raw RRULE lines with their
// concrete occurrences inside [rangeStart, rangeEnd]. Events without
// recurrence (the vast majority) pass through unchanged, as do recurring
// events whose start could not be parsed.
//
// Occurrences preserve the base event's duration and all relational fields;
// their IDs are suffixed with the occurrence start so per-instance rows stay
// distinguishable in the UI.
func ExpandRecurring(events []model.Event, rangeStart, rangeEnd time.Time, maxPerEvent int) []model.Event {
	if maxPerEvent <= 0 {
		maxPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if len(ev.Recurrence) == 0 || ev.Start == nil {
			out = append(out, ev)
			continue
		}
		occ := expandEvent(ev, rangeStart, rangeEnd, maxPerEvent)
		if occ == nil {
			// Unusable recurrence rule: keep the base event so it stays
			// visible in listings.
			out = append(out, ev)
			continue
		}
		out = append(out, occ...)
	}
	return out
}

func expandEvent(ev model.Event, rangeStart, rangeEnd time.Time, maxPerEvent int) []model.Event {
	var set rrule.Set
	haveRule := false

	for _, line := range ev.Recurrence {
		name, value := splitRecurrenceLine(line)
		switch name {
		case "RRULE":
			r, err := rrule.StrToRRule(value)
			if err != nil {
				appLog.Error("expand: failed to parse RRULE", err, "id", ev.ID, "rrule", value)
				continue
			}
			r.DTStart(*ev.Start)
			set.RRule(r)
			haveRule = true
		case "EXDATE":
			for _, part := range strings.Split(value, ",") {
				if t := parseRecurrenceTime(part, ev.Start.Location()); t != nil {
					set.ExDate(*t)
				}
			}
		}
	}
	if !haveRule {
		return nil
	}

	// Between operates in the event's own location, like the base start.
	occTimes := set.Between(rangeStart.In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)
	if len(occTimes) > maxPerEvent {
		occTimes = occTimes[:maxPerEvent]
		appLog.Warn("expand: occurrence cap hit", "id", ev.ID, "cap", maxPerEvent)
	}

	var dur time.Duration
	if ev.End != nil {
		dur = ev.End.Sub(*ev.Start)
	}

	out := make([]model.Event, 0, len(occTimes))
	for _, start := range occTimes {
		occ := ev
		occ.Recurrence = nil

		s := start
		occ.Start = &s
		occ.RawStart = s.Format(time.RFC3339)
		if ev.End != nil {
			e := s.Add(dur)
			occ.End = &e
			occ.RawEnd = e.Format(time.RFC3339)
		}
		if ev.ID != "" {
			occ.ID = ev.ID + "_" + s.UTC().Format("20060102T150405Z")
		}
		out = append(out, occ)
	}
	return out
}

// splitRecurrenceLine splits a raw line like
// "RRULE:FREQ=WEEKLY;BYDAY=MO" or "EXDATE;TZID=Europe/Berlin:20240311T100000"
// into its property name and value. Lines without a recognized property
// prefix are treated as bare RRULE bodies, which is how some workflows emit
// them.
func splitRecurrenceLine(line string) (name, value string) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "RRULE", line
	}
	name = line[:i]
	value = line[i+1:]
	// Drop property parameters such as ;TZID=... from the name.
	if j := strings.Index(name, ";"); j >= 0 {
		name = name[:j]
	}
	switch name {
	case "RRULE", "EXDATE", "RDATE":
		return name, value
	}
	return "RRULE", line
}

// parseRecurrenceTime parses basic iCalendar date/date-time forms used by
// EXDATE values.
func parseRecurrenceTime(v string, loc *time.Location) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.HasSuffix(v, "Z") {
		if t, err := time.Parse("20060102T150405Z", v); err == nil {
			return &t
		}
		return nil
	}
	if strings.Contains(v, "T") {
		if t, err := time.ParseInLocation("20060102T150405", v, loc); err == nil {
			return &t
		}
		return nil
	}
	if t, err := time.ParseInLocation("20060102", v, loc); err == nil {
		return &t
	}
	return nil
}
