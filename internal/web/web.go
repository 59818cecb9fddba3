// Package web exposes the engine's views as a JSON API plus an ICS export.
// The dashboard frontend is an external collaborator; nothing here renders
// HTML.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"nachhilfecal/internal/config"
	"nachhilfecal/internal/engine"
	appLog "nachhilfecal/internal/log"
	"nachhilfecal/internal/model"
	"nachhilfecal/internal/view"
)

// Server provides the dashboard HTTP API.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	router *mux.Router
}

// NewServer constructs a Server around an engine instance.
func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer starts an HTTP server bound to cfg.Listen and blocks until it
// fails or ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, eng *engine.Engine) error {
	s := NewServer(cfg, eng)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means auth stays off.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Nachhilfe", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/students", s.handleStudents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/teachers", s.handleTeachers).Methods(http.MethodGet)
	s.router.HandleFunc("/api/subjects", s.handleSubjects).Methods(http.MethodGet)
	s.router.HandleFunc("/api/students/{name}/events", s.handleStudentEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/teachers/{name}/events", s.handleTeacherEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/appointments", s.handleCreateAppointment).Methods(http.MethodPost)

	s.router.HandleFunc("/calendar.ics", s.handleCalendarICS).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for event listings.
type eventsResponse struct {
	Events []eventDTO `json:"events"`
	Count  int        `json:"count"`
}

// eventDTO is a JSON-friendly view of a canonical event. Start/end echo the
// raw source strings when they could not be parsed, so malformed records
// stay visible.
type eventDTO struct {
	ID             string     `json:"id"`
	Summary        string     `json:"summary"`
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	RawStart       string     `json:"raw_start,omitempty"`
	RawEnd         string     `json:"raw_end,omitempty"`
	Teacher        string     `json:"teacher,omitempty"`
	Student        string     `json:"student,omitempty"`
	Topic          string     `json:"topic,omitempty"`
	StudentContact string     `json:"student_contact,omitempty"`
	TeacherContact string     `json:"teacher_contact,omitempty"`
	Description    string     `json:"description"`
	Link           string     `json:"link,omitempty"`
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dto := eventDTO{
			ID:             ev.ID,
			Summary:        ev.Summary,
			Start:          ev.Start,
			End:            ev.End,
			Teacher:        ev.Teacher,
			Student:        ev.Student,
			Topic:          ev.Topic,
			StudentContact: ev.StudentContact,
			TeacherContact: ev.TeacherContact,
			Description:    ev.Description,
			Link:           ev.Link,
		}
		// Raw echo only matters when parsing failed.
		if ev.Start == nil {
			dto.RawStart = ev.RawStart
		}
		if ev.End == nil {
			dto.RawEnd = ev.RawEnd
		}
		out = append(out, dto)
	}
	return out
}

// handleEvents returns the normalized calendar.
//
// GET /api/events?subject=Mathematik&teacher=Meier
// GET /api/events?upcoming=1&limit=5
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var events []model.Event
	if q.Get("upcoming") == "1" || q.Get("upcoming") == "true" {
		events = s.engine.Upcoming(r.Context(), parseIntDefault(q.Get("limit"), 0))
	} else {
		events = s.engine.Calendar(r.Context())
		if subject, teacher := q.Get("subject"), q.Get("teacher"); subject != "" || teacher != "" {
			events = view.FilterBySubjectAndTeacher(events, subject, teacher)
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{Events: toDTOs(events), Count: len(events)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats(r.Context()))
}

type rosterResponse struct {
	Names []string `json:"names"`
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rosterResponse{Names: s.engine.Students(r.Context())})
}

func (s *Server) handleTeachers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rosterResponse{Names: s.engine.Teachers(r.Context())})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rosterResponse{Names: s.engine.Subjects(r.Context())})
}

func (s *Server) handleStudentEvents(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	events := s.engine.StudentEvents(r.Context(), name)
	writeJSON(w, http.StatusOK, eventsResponse{Events: toDTOs(events), Count: len(events)})
}

func (s *Server) handleTeacherEvents(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	events := s.engine.TeacherEvents(r.Context(), name)
	writeJSON(w, http.StatusOK, eventsResponse{Events: toDTOs(events), Count: len(events)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.engine.Refresh()
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var draft model.AppointmentDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.engine.CreateAppointment(r.Context(), draft); err != nil {
		appLog.Error("create appointment failed", err, "summary", draft.Summary)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
