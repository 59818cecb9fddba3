package web

import (
	"net/http"
	"strconv"

	ical "github.com/arran4/golang-ical"

	"nachhilfecal/internal/model"
)

// handleCalendarICS serves the normalized calendar as an iCalendar feed so
// the tutoring schedule can be subscribed to from any calendar client.
//
// Events without a parseable start cannot be expressed as VEVENTs and are
// left out of the feed; they remain visible in the JSON listings.
func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	events := s.engine.Calendar(r.Context())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="nachhilfe.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(buildICS(events)))
}

func buildICS(events []model.Event) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//nachhilfecal//DE")

	for i, ev := range events {
		if !ev.HasStart() {
			continue
		}

		uid := ev.ID
		if uid == "" {
			uid = "nachhilfecal-" + ev.Start.UTC().Format("20060102T150405Z") + "-" + strconv.Itoa(i)
		}

		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(*ev.Start)
		ve.SetStartAt(*ev.Start)
		if ev.End != nil {
			ve.SetEndAt(*ev.End)
		}
		ve.SetSummary(ev.Summary)
		if ev.Description != model.PlaceholderDescription {
			ve.SetDescription(ev.Description)
		}
		if ev.Link != "" {
			ve.SetURL(ev.Link)
		}
	}

	return cal.Serialize()
}
