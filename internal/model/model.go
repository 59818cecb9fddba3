package model

import "time"

// Placeholder values substituted when the data source omits display fields.
// These match what the webhook backend's own descriptions use.
const (
	PlaceholderSummary     = "Termin"
	PlaceholderDescription = "Keine Beschreibung"
)

// Event is the canonical appointment record all derived views operate on.
// It is produced by merging the raw webhook fields with whatever could be
// recovered from the free-text description.
type Event struct {
	ID      string
	Summary string

	// Start / End are nil when the source value could not be parsed.
	// RawStart / RawEnd always echo the original strings so the caller can
	// still display something for malformed records.
	Start    *time.Time
	End      *time.Time
	RawStart string
	RawEnd   string

	Teacher        string
	Student        string
	Topic          string
	StudentContact string
	TeacherContact string

	Description string
	Link        string

	// Recurrence carries raw RRULE lines (Google calendar style) for events
	// the source did not expand itself.
	Recurrence []string
}

// HasStart reports whether the event carries a parseable start timestamp.
// Events without one are excluded from date-bucketed aggregates but stay
// visible in unfiltered listings.
func (e Event) HasStart() bool {
	return e.Start != nil
}

// Stats is the dashboard's headline triple.
type Stats struct {
	Total int `json:"total"`
	Today int `json:"today"`
	Week  int `json:"week"`
}

// AppointmentDraft is the input for the create-appointment call. The labeled
// description sent to the source is composed from these fields.
type AppointmentDraft struct {
	Summary        string    `json:"summary"`
	Teacher        string    `json:"teacher"`
	Student        string    `json:"student"`
	Topic          string    `json:"topic"`
	StudentContact string    `json:"student_contact,omitempty"`
	TeacherContact string    `json:"teacher_contact,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}
