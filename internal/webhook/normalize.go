package webhook

import (
	"fmt"
	"strings"
	"time"

	"nachhilfecal/internal/model"
)

// Normalize merges a raw webhook event into the canonical Event record.
//
// The merge is two-tier: structured top-level attributes win, and fields
// recovered from the description text fill the gaps. Timestamp fields accept
// either a bare ISO-8601 string or a nested {"dateTime": ...} object (both
// forms occur in the wild, depending on which workflow produced the event).
//
// Normalize is total: malformed fields degrade to placeholders or raw echo
// strings, never to an error.
func Normalize(raw RawEvent, loc *time.Location) model.Event {
	if loc == nil {
		loc = time.Local
	}

	ev := model.Event{
		ID:          stringField(raw, "id", "iCalUID", "uid"),
		Summary:     stringField(raw, "summary", "title"),
		Description: stringField(raw, "description", "desc"),
		Link:        stringField(raw, "htmlLink", "link", "url"),
	}
	if ev.Summary == "" {
		ev.Summary = model.PlaceholderSummary
	}
	if ev.Description == "" {
		ev.Description = model.PlaceholderDescription
	}

	ev.Start, ev.RawStart = parseTimestamp(raw["start"], loc)
	ev.End, ev.RawEnd = parseTimestamp(raw["end"], loc)

	// Relational fields: structured attributes first, description second.
	fields := ExtractDescription(stringField(raw, "description", "desc"))
	ev.Teacher = firstNonEmpty(stringField(raw, "teacher", "lehrer"), fields.Teacher)
	ev.Student = firstNonEmpty(stringField(raw, "student", "schueler"), fields.Student)
	ev.Topic = firstNonEmpty(stringField(raw, "topic", "subject", "thema"), fields.Topic)
	ev.StudentContact = firstNonEmpty(stringField(raw, "studentContact", "kontaktSchueler"), fields.StudentContact)
	ev.TeacherContact = firstNonEmpty(stringField(raw, "teacherContact", "kontaktLehrer"), fields.TeacherContact)

	ev.Recurrence = recurrenceLines(raw["recurrence"])

	return ev
}

// NormalizeAll maps Unwrap output to canonical events.
func NormalizeAll(raws []RawEvent, loc *time.Location) []model.Event {
	events := make([]model.Event, 0, len(raws))
	for _, raw := range raws {
		events = append(events, Normalize(raw, loc))
	}
	return events
}

// parseTimestamp normalizes the two accepted timestamp forms into a typed
// time plus the original string. An unparsable value keeps the raw string
// and returns a nil time; the caller echoes the raw string when displaying.
func parseTimestamp(v any, loc *time.Location) (*time.Time, string) {
	switch tv := v.(type) {
	case string:
		return parseISOTime(tv, loc), tv
	case map[string]any:
		if s, ok := tv["dateTime"].(string); ok {
			return parseISOTime(s, loc), s
		}
		if s, ok := tv["date"].(string); ok {
			// All-day form: date only.
			return parseISOTime(s, loc), s
		}
	}
	return nil, ""
}

// parseISOTime parses an ISO-8601-ish timestamp. A trailing literal Z is the
// UTC offset +00:00. Naive timestamps (no offset) are interpreted in loc.
func parseISOTime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	// Naive date-time, e.g. 2024-03-01T10:00:00
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return &t
	}
	// Date-only (all-day), e.g. 2024-03-01
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return &t
	}
	return nil
}

// stringField returns the first non-empty string value among the given keys.
// Numeric identifiers are rendered to their decimal form.
func stringField(raw RawEvent, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// encoding/json decodes JSON numbers as float64.
			if v == float64(int64(v)) {
				return fmt.Sprintf("%d", int64(v))
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// recurrenceLines extracts RRULE-style strings from a raw recurrence field.
func recurrenceLines(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
