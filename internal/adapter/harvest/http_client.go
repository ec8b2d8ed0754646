package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"timesplit/internal/domain"
)

const dateLayout = "2006-01-02"

// Client implements ports.TimerSource, ports.TimerSink and
// ports.Authenticator against the Harvest timesheet API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *slog.Logger
}

func NewClient(baseURL, username, password string, log *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// DailyTimers fetches the entries and projects for date.
// Harvest: GET /daily/{day_of_year}/{year}
func (c *Client) DailyTimers(ctx context.Context, date time.Time) (domain.Day, error) {
	path := fmt.Sprintf("/daily/%d/%d", date.YearDay(), date.Year())
	var raw rawDaily
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return domain.Day{}, err
	}

	day := domain.Day{
		Date:     date,
		Timers:   make([]domain.Timer, 0, len(raw.DayEntries)),
		Projects: make([]domain.Project, 0, len(raw.Projects)),
	}
	for _, e := range raw.DayEntries {
		t, err := e.toDomain()
		if err != nil {
			return domain.Day{}, err
		}
		day.Timers = append(day.Timers, t)
	}
	for _, p := range raw.Projects {
		day.Projects = append(day.Projects, domain.Project{
			ID:     domain.ProjectID(strconv.FormatInt(p.ID, 10)),
			Name:   p.Name,
			Code:   p.Code,
			Client: p.Client,
		})
	}
	c.log.Debug("harvest daily fetched",
		slog.String("date", date.Format(dateLayout)),
		slog.Int("timers", len(day.Timers)),
		slog.Int("projects", len(day.Projects)),
	)
	return day, nil
}

// CreateTimer adds a new entry. Harvest: POST /daily/add
func (c *Client) CreateTimer(ctx context.Context, t domain.Timer) (domain.Timer, error) {
	if t.Persisted() {
		return domain.Timer{}, errors.New("harvest: create called with a timer that already has an id")
	}
	var raw rawDayEntry
	if err := c.do(ctx, http.MethodPost, "/daily/add", newEntryRequest(t), &raw); err != nil {
		return domain.Timer{}, err
	}
	return c.settle(ctx, t, raw)
}

// UpdateTimer overwrites an existing entry. Harvest: POST /daily/update/{id}
func (c *Client) UpdateTimer(ctx context.Context, t domain.Timer) (domain.Timer, error) {
	if !t.Persisted() {
		return domain.Timer{}, errors.New("harvest: update called with a timer without an id")
	}
	path := fmt.Sprintf("/daily/update/%d", *t.ID)
	var raw rawDayEntry
	if err := c.do(ctx, http.MethodPost, path, newEntryRequest(t), &raw); err != nil {
		return domain.Timer{}, err
	}
	return c.settle(ctx, t, raw)
}

// settle stops the remote timer when the saved entry is still running but
// want is not. The v1 entry payload has no running flag, so the only way to
// stop a timer is the toggle endpoint: GET /daily/timer/{id}
func (c *Client) settle(ctx context.Context, want domain.Timer, raw rawDayEntry) (domain.Timer, error) {
	saved, err := raw.toDomain()
	if err != nil || want.Active || !saved.Active {
		return saved, err
	}
	var stopped rawDayEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/daily/timer/%d", raw.ID), nil, &stopped); err != nil {
		return domain.Timer{}, fmt.Errorf("harvest: stopping timer %d: %w", raw.ID, err)
	}
	c.log.Debug("harvest stopped timer", slog.Int64("id", raw.ID))
	return stopped.toDomain()
}

// WhoAmI verifies the credentials. Harvest: GET /account/who_am_i
func (c *Client) WhoAmI(ctx context.Context) (domain.User, error) {
	var raw rawWhoAmI
	if err := c.do(ctx, http.MethodGet, "/account/who_am_i", nil, &raw); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:        raw.User.ID,
		Email:     raw.User.Email,
		FirstName: raw.User.FirstName,
		LastName:  raw.User.LastName,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.username == "" || c.password == "" {
		return errors.New("missing harvest credentials")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Path = path

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("harvest: unexpected status %d: %s", e.Code, e.Body)
}

// Unauthorized reports whether the credentials were rejected.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

type rawDaily struct {
	DayEntries []rawDayEntry `json:"day_entries"`
	Projects   []rawProject  `json:"projects"`
}

// rawDayEntry mirrors a Harvest day entry. Harvest sends ids of related
// records as strings.
type rawDayEntry struct {
	ID             int64    `json:"id"`
	ProjectID      string   `json:"project_id"`
	TaskID         string   `json:"task_id"`
	Hours          *float64 `json:"hours"`
	Notes          *string  `json:"notes"`
	SpentAt        string   `json:"spent_at"`
	TimerStartedAt *string  `json:"timer_started_at"`
}

func (r rawDayEntry) toDomain() (domain.Timer, error) {
	id := r.ID
	t := domain.Timer{
		ID:        &id,
		ProjectID: domain.ProjectID(r.ProjectID),
		TaskID:    r.TaskID,
		Hours:     r.Hours,
		Notes:     r.Notes,
		Active:    r.TimerStartedAt != nil && *r.TimerStartedAt != "",
	}
	if r.SpentAt != "" {
		d, err := time.Parse(dateLayout, r.SpentAt)
		if err != nil {
			return domain.Timer{}, fmt.Errorf("harvest: entry %d spent_at: %w", r.ID, err)
		}
		t.SpentAt = d
	}
	return t, nil
}

type rawProject struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Client string `json:"client"`
}

type rawWhoAmI struct {
	User struct {
		ID        int64  `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user"`
}

type entryRequest struct {
	ProjectID string   `json:"project_id"`
	TaskID    string   `json:"task_id,omitempty"`
	Hours     *float64 `json:"hours,omitempty"`
	Notes     string   `json:"notes"`
	SpentAt   string   `json:"spent_at,omitempty"`
}

func newEntryRequest(t domain.Timer) entryRequest {
	req := entryRequest{
		ProjectID: string(t.ProjectID),
		TaskID:    t.TaskID,
		Hours:     t.Hours,
	}
	if t.Notes != nil {
		req.Notes = *t.Notes
	}
	if !t.SpentAt.IsZero() {
		req.SpentAt = t.SpentAt.Format(dateLayout)
	}
	return req
}
