// Package engine ties the webhook client, the TTL cache and the view
// functions together. It is constructed once per process and injected into
// the HTTP layer; all dashboard reads go through it.
//
// Failures at the fetch boundary are logged and degrade to empty results.
// Nothing below this package needs defensive error handling around engine
// calls.
package engine

import (
	"context"
	"errors"
	"time"

	"nachhilfecal/internal/cache"
	appLog "nachhilfecal/internal/log"
	"nachhilfecal/internal/model"
	"nachhilfecal/internal/view"
	"nachhilfecal/internal/webhook"
)

// Logical query keys. Each key is cached and invalidated independently.
const (
	KeyCalendar = "calendar"
	KeyStudents = "students"
	KeyTeachers = "teachers"

	keyStudentPrefix = "student:"
	keyTeacherPrefix = "teacher:"
)

// Recurrence expansion window relative to the current day. The calendar
// feed itself is not windowed; only synthetic occurrences are bounded.
const (
	expandBackfillDays = 1
	expandHorizonDays  = 28
)

// Source is the slice of the webhook client the engine needs. Split out so
// tests can substitute a scripted source.
type Source interface {
	Calendar(ctx context.Context) ([]webhook.RawEvent, error)
	PersonEvents(ctx context.Context, queryType, name string) ([]webhook.RawEvent, error)
	Roster(ctx context.Context, queryType string) ([]string, error)
	CreateAppointment(ctx context.Context, draft model.AppointmentDraft) error
}

// Options configures an Engine.
type Options struct {
	// Location is the display timezone for date bucketing. Nil means local.
	Location *time.Location

	// CalendarTTL / RosterTTL bound cache staleness per key class.
	CalendarTTL time.Duration
	RosterTTL   time.Duration

	// UpcomingLimit caps the upcoming view. Non-positive means 5.
	UpcomingLimit int
}

// Engine is the dashboard's data engine.
type Engine struct {
	source Source
	cache  *cache.Manager

	loc           *time.Location
	calendarTTL   time.Duration
	rosterTTL     time.Duration
	upcomingLimit int

	now func() time.Time // overridable for tests
}

// New constructs an Engine around the given source.
func New(source Source, opts Options) *Engine {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	calendarTTL := opts.CalendarTTL
	if calendarTTL <= 0 {
		calendarTTL = 5 * time.Minute
	}
	rosterTTL := opts.RosterTTL
	if rosterTTL <= 0 {
		rosterTTL = 30 * time.Minute
	}
	limit := opts.UpcomingLimit
	if limit <= 0 {
		limit = 5
	}
	return &Engine{
		source:        source,
		cache:         cache.NewManager(),
		loc:           loc,
		calendarTTL:   calendarTTL,
		rosterTTL:     rosterTTL,
		upcomingLimit: limit,
		now:           time.Now,
	}
}

// Calendar returns the full normalized event list, served from cache while
// fresh. A failed fetch returns an empty list for this call and leaves any
// prior cached list untouched.
func (e *Engine) Calendar(ctx context.Context) []model.Event {
	v, err := e.cache.GetOrFetch(KeyCalendar, e.calendarTTL, func() (any, error) {
		raws, err := e.source.Calendar(ctx)
		if err != nil {
			return nil, err
		}
		return e.canonicalize(raws), nil
	})
	if err != nil {
		appLog.Error("calendar fetch failed", err)
		return []model.Event{}
	}
	return v.([]model.Event)
}

// StudentEvents returns the events for one student, exact-match on the
// canonical student field.
func (e *Engine) StudentEvents(ctx context.Context, name string) []model.Event {
	return e.personEvents(ctx, webhook.QueryStudent, keyStudentPrefix+name, name)
}

// TeacherEvents returns the events for one teacher, exact-match on the
// canonical teacher field.
func (e *Engine) TeacherEvents(ctx context.Context, name string) []model.Event {
	return e.personEvents(ctx, webhook.QueryTeacher, keyTeacherPrefix+name, name)
}

// personEvents serves a per-person detail query. The source's detail query
// is preferred; when it fails or yields nothing the cached calendar is
// filtered instead, so backends that only implement type=calendar still get
// working person views.
func (e *Engine) personEvents(ctx context.Context, queryType, key, name string) []model.Event {
	v, err := e.cache.GetOrFetch(key, e.calendarTTL, func() (any, error) {
		raws, err := e.source.PersonEvents(ctx, queryType, name)
		if err != nil {
			return nil, err
		}
		events := e.canonicalize(raws)
		if len(events) == 0 {
			events = view.FilterByPerson(e.Calendar(ctx), name)
		}
		return events, nil
	})
	if err != nil {
		appLog.Error("person detail fetch failed", err, "type", queryType, "name", name)
		return view.FilterByPerson(e.Calendar(ctx), name)
	}
	return v.([]model.Event)
}

// Students returns the student roster, falling back to names derived from
// the calendar when the roster query fails or is empty.
func (e *Engine) Students(ctx context.Context) []string {
	return e.roster(ctx, webhook.QueryStudents, KeyStudents, view.Students)
}

// Teachers returns the teacher roster, with the same fallback as Students.
func (e *Engine) Teachers(ctx context.Context) []string {
	return e.roster(ctx, webhook.QueryTeachers, KeyTeachers, view.Teachers)
}

func (e *Engine) roster(ctx context.Context, queryType, key string, derive func([]model.Event) []string) []string {
	v, err := e.cache.GetOrFetch(key, e.rosterTTL, func() (any, error) {
		names, err := e.source.Roster(ctx, queryType)
		if err != nil {
			return nil, err
		}
		return names, nil
	})
	if err != nil {
		appLog.Error("roster fetch failed", err, "type", queryType)
		return derive(e.Calendar(ctx))
	}
	names := v.([]string)
	if len(names) == 0 {
		return derive(e.Calendar(ctx))
	}
	return names
}

// Subjects returns the distinct topics for filter population.
func (e *Engine) Subjects(ctx context.Context) []string {
	return view.Subjects(e.Calendar(ctx))
}

// Stats returns the headline triple for the current reference time.
func (e *Engine) Stats(ctx context.Context) model.Stats {
	return view.ComputeStats(e.Calendar(ctx), e.now().In(e.loc))
}

// Upcoming returns the next appointments, strictly after now. A non-positive
// limit uses the configured default.
func (e *Engine) Upcoming(ctx context.Context, limit int) []model.Event {
	if limit <= 0 {
		limit = e.upcomingLimit
	}
	return view.Upcoming(e.Calendar(ctx), e.now().In(e.loc), limit)
}

// Refresh clears every cache entry. Bound to the user-triggered refresh.
func (e *Engine) Refresh() {
	e.cache.InvalidateAll()
	appLog.Info("cache invalidated by refresh")
}

// WarmCalendar refetches the calendar feed, replacing the cached entry.
// Driven by the cron schedule in cmd.
func (e *Engine) WarmCalendar(ctx context.Context) {
	e.cache.Invalidate(KeyCalendar)
	events := e.Calendar(ctx)
	appLog.Info("calendar cache warmed", "event_count", len(events))
}

// CreateAppointment submits a new appointment and, on success, invalidates
// the calendar key so the next read sees it.
func (e *Engine) CreateAppointment(ctx context.Context, draft model.AppointmentDraft) error {
	if draft.Summary == "" {
		return errors.New("summary is required")
	}
	if draft.Start.IsZero() || draft.End.IsZero() {
		return errors.New("start and end are required")
	}
	if err := e.source.CreateAppointment(ctx, draft); err != nil {
		return err
	}
	e.cache.Invalidate(KeyCalendar)
	return nil
}

// canonicalize runs raw events through normalize + recurrence expansion and
// returns them chronologically ordered.
func (e *Engine) canonicalize(raws []webhook.RawEvent) []model.Event {
	events := webhook.NormalizeAll(raws, e.loc)

	now := e.now().In(e.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	rangeStart := day.AddDate(0, 0, -expandBackfillDays)
	rangeEnd := day.AddDate(0, 0, expandHorizonDays)
	events = webhook.ExpandRecurring(events, rangeStart, rangeEnd, 0)

	return view.SortByStart(events)
}
