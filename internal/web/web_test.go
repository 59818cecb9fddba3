package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nachhilfecal/internal/config"
	"nachhilfecal/internal/engine"
	"nachhilfecal/internal/model"
	"nachhilfecal/internal/webhook"
)

type stubSource struct {
	calendar   []webhook.RawEvent
	created    []model.AppointmentDraft
	rosterHits int
}

func (s *stubSource) Calendar(_ context.Context) ([]webhook.RawEvent, error) {
	return s.calendar, nil
}

func (s *stubSource) PersonEvents(_ context.Context, _, _ string) ([]webhook.RawEvent, error) {
	return nil, nil
}

func (s *stubSource) Roster(_ context.Context, _ string) ([]string, error) {
	s.rosterHits++
	return nil, nil
}

func (s *stubSource) CreateAppointment(_ context.Context, draft model.AppointmentDraft) error {
	s.created = append(s.created, draft)
	return nil
}

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *stubSource) {
	t.Helper()

	src := &stubSource{
		calendar: []webhook.RawEvent{
			{
				"id":          "1",
				"summary":     "Mathematik Nachhilfe",
				"start":       "2030-03-01T10:00:00Z",
				"end":         "2030-03-01T11:00:00Z",
				"description": "Lehrer: Meier\nSchüler: Tom\nThema: Algebra",
			},
			{
				"id":      "2",
				"summary": "Deutsch Nachhilfe",
				"start":   "kaputt",
			},
		},
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	eng := engine.New(src, engine.Options{Location: time.UTC, CalendarTTL: time.Hour, RosterTTL: time.Hour})

	srv := httptest.NewServer(NewServer(cfg, eng).Handler())
	t.Cleanup(srv.Close)
	return srv, src
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body eventsResponse
	resp := getJSON(t, srv.URL+"/api/events", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, 2, body.Count)

	// Parsed event first, unparsable one last with its raw echo.
	assert.Equal(t, "1", body.Events[0].ID)
	assert.Equal(t, "Meier", body.Events[0].Teacher)
	assert.Empty(t, body.Events[0].RawStart)

	assert.Equal(t, "2", body.Events[1].ID)
	assert.Nil(t, body.Events[1].Start)
	assert.Equal(t, "kaputt", body.Events[1].RawStart)
}

func TestEventsFilter(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body eventsResponse
	getJSON(t, srv.URL+"/api/events?subject=Algebra&teacher=Meier", &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "1", body.Events[0].ID)

	getJSON(t, srv.URL+"/api/events?teacher=Niemand", &body)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Events, "empty result still serializes as []")
}

func TestUpcomingEvents(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body eventsResponse
	getJSON(t, srv.URL+"/api/events?upcoming=1&limit=1", &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "1", body.Events[0].ID)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var stats model.Stats
	resp := getJSON(t, srv.URL+"/api/stats", &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, stats.Total)
}

func TestRosterEndpointsFallBackToCalendar(t *testing.T) {
	srv, src := newTestServer(t, nil)

	var roster rosterResponse
	getJSON(t, srv.URL+"/api/students", &roster)
	assert.Equal(t, []string{"Tom"}, roster.Names)

	getJSON(t, srv.URL+"/api/teachers", &roster)
	assert.Equal(t, []string{"Meier"}, roster.Names)

	getJSON(t, srv.URL+"/api/subjects", &roster)
	assert.Equal(t, []string{"Algebra"}, roster.Names)

	assert.Equal(t, 2, src.rosterHits)
}

func TestPersonEventsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var body eventsResponse
	getJSON(t, srv.URL+"/api/students/Tom/events", &body)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "Tom", body.Events[0].Student)

	getJSON(t, srv.URL+"/api/teachers/Unbekannt/events", &body)
	assert.Equal(t, 0, body.Count)
}

func TestCreateAppointment(t *testing.T) {
	srv, src := newTestServer(t, nil)

	payload := `{
		"summary": "Physik Nachhilfe",
		"teacher": "Meier",
		"student": "Lisa",
		"topic": "Mechanik",
		"start": "2030-03-10T15:00:00Z",
		"end": "2030-03-10T16:00:00Z"
	}`
	resp, err := http.Post(srv.URL+"/api/appointments", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, src.created, 1)
	assert.Equal(t, "Physik Nachhilfe", src.created[0].Summary)
	assert.Equal(t, "Lisa", src.created[0].Student)
}

func TestCreateAppointmentRejectsBadBody(t *testing.T) {
	srv, src := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/appointments", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, src.created)
}

func TestRefreshEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "geheim"}
	srv, _ := newTestServer(t, cfg)

	// Health stays open.
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Everything else requires credentials.
	resp, err = http.Get(srv.URL + "/api/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
	req.SetBasicAuth("admin", "geheim")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong password is rejected.
	req.SetBasicAuth("admin", "falsch")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCalendarICS(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	ics := string(data)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Mathematik Nachhilfe")
	assert.NotContains(t, ics, "Deutsch Nachhilfe", "events without a parsed start are skipped")
}
