// Package webhook talks to the external appointment source: a webhook
// endpoint with an unstable, sometimes shapeless JSON response. The package
// turns whatever comes back into canonical events (unwrap -> extract ->
// normalize -> expand) and never lets a malformed payload escape as a panic
// or exception.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "nachhilfecal/internal/log"
	"nachhilfecal/internal/model"
)

// Query types understood by the webhook backend.
const (
	QueryCalendar = "calendar"
	QueryStudents = "students"
	QueryTeachers = "teachers"
	QueryStudent  = "student"
	QueryTeacher  = "teacher"
	QueryCreate   = "create"
)

// Client performs the HTTP round trips to the webhook endpoint. One blocking
// call per cache miss; the timeout is the only bound on call duration.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a webhook client. A zero timeout falls back to 15s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Calendar fetches all calendar events.
func (c *Client) Calendar(ctx context.Context) ([]RawEvent, error) {
	payload, err := c.query(ctx, QueryCalendar, "")
	if err != nil {
		return nil, err
	}
	return Unwrap(payload), nil
}

// PersonEvents fetches the detail view for a single student or teacher.
// queryType must be QueryStudent or QueryTeacher.
func (c *Client) PersonEvents(ctx context.Context, queryType, name string) ([]RawEvent, error) {
	payload, err := c.query(ctx, queryType, name)
	if err != nil {
		return nil, err
	}
	return Unwrap(payload), nil
}

// Roster fetches the student or teacher name list. queryType must be
// QueryStudents or QueryTeachers.
func (c *Client) Roster(ctx context.Context, queryType string) ([]string, error) {
	payload, err := c.query(ctx, queryType, "")
	if err != nil {
		return nil, err
	}
	return UnwrapNames(payload), nil
}

// CreateAppointment POSTs a create request. Only the call's success status is
// verified; the engine does not read back the created event.
func (c *Client) CreateAppointment(ctx context.Context, draft model.AppointmentDraft) error {
	body := map[string]any{
		"type":    QueryCreate,
		"summary": draft.Summary,
		"description": ComposeDescription(
			draft.Teacher, draft.Student, draft.Topic,
			draft.StudentContact, draft.TeacherContact,
		),
		"start": draft.Start.Format(time.RFC3339),
		"end":   draft.End.Format(time.RFC3339),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	appLog.Info("webhook create start", "url", redactURL(c.baseURL), "summary", draft.Summary)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook create failed: %s", resp.Status)
	}
	appLog.Info("webhook create success", "status", resp.StatusCode)
	return nil
}

// query performs one GET against the webhook endpoint and decodes the body.
// Transport errors, non-2xx statuses and malformed JSON all surface as
// errors here so the cache never stores a failed fetch.
func (c *Client) query(ctx context.Context, queryType, name string) (any, error) {
	if c.baseURL == "" {
		return nil, errors.New("webhook base URL is empty")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("type", queryType)
	if name != "" {
		q.Set("name", name)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	appLog.Debug("webhook fetch start", "url", redactURL(c.baseURL), "type", queryType, "name", name)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook fetch failed: %s", resp.Status)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("webhook returned invalid JSON: %w", err)
	}

	appLog.Debug("webhook fetch success", "type", queryType, "status", resp.StatusCode, "bytes", len(body))
	return payload, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// redactURL hides sensitive parts of the webhook URL for logging purposes.
// n8n webhook paths routinely contain secret path segments.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "webhook://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
