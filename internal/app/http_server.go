package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timesplit/internal/domain"
	"timesplit/internal/usecase"
)

// HTTPServer returns a configured http.Server that exposes the day's timers,
// the split rules and an endpoint to trigger a split.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, a.routes())}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /timers?date=YYYY-MM-DD, defaults to today.
	mux.HandleFunc("/timers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		date, err := ParseDate(r.URL.Query().Get("date"), a.Today(), a.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		p, err := a.Preview(r.Context(), date)
		if err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		timers := make([]timerJSON, 0, len(p.Views))
		for _, v := range p.Views {
			tj := newTimerJSON(v.Timer)
			tj.ShouldSplit = v.ShouldSplit
			tj.SplitProjects = v.Projects
			timers = append(timers, tj)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"date":   date.Format(dateLayout),
			"timers": timers,
		})
	})

	// /split?date=...&only=1,2&dry_run=true
	mux.HandleFunc("/split", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		date, err := ParseDate(q.Get("date"), a.Today(), a.loc)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		only, err := ParseIDs(q.Get("only"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		var dryRun bool
		if v := q.Get("dry_run"); v != "" {
			dryRun, err = strconv.ParseBool(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "error": "invalid dry_run " + strconv.Quote(v)})
				return
			}
		}

		// Optional timeout override: ?timeout=30s
		ctx := r.Context()
		if tStr := q.Get("timeout"); tStr != "" {
			if d, err := time.ParseDuration(tStr); err == nil && d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
		}

		report, err := a.Split(ctx, date, usecase.SplitOptions{Only: only, DryRun: dryRun})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrSplitRunning) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]any{
				"status": "error",
				"error":  err.Error(),
				"date":   date.Format(dateLayout),
			})
			return
		}

		results := make([]resultJSON, 0, len(report.Results))
		for _, res := range report.Results {
			rj := resultJSON{Operation: string(res.Operation), Timer: newTimerJSON(res.Timer), OK: res.Succeeded()}
			if res.Saved != nil {
				rj.SavedID = res.Saved.ID
			}
			if res.Err != nil {
				rj.Error = res.Err.Error()
			}
			results = append(results, rj)
		}
		status, label := http.StatusOK, "ok"
		if len(report.Failed()) > 0 {
			status, label = http.StatusMultiStatus, "partial"
		}
		writeJSON(w, status, map[string]any{
			"status":  label,
			"run_id":  report.RunID,
			"date":    date.Format(dateLayout),
			"dry_run": report.DryRun,
			"results": results,
		})
	})

	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg, err := a.rules.Configuration()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		rules := make([]ruleJSON, 0, len(cfg.Rules))
		for i, rule := range cfg.Rules {
			ids := make([]string, 0, len(rule.ProjectIDs))
			for _, p := range rule.ProjectIDs {
				ids = append(ids, string(p))
			}
			rules = append(rules, ruleJSON{Index: i, Prefix: rule.Prefix, Projects: ids})
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rules": rules})
	})

	return mux
}

type timerJSON struct {
	ID            *int64   `json:"id"`
	ProjectID     string   `json:"project_id"`
	TaskID        string   `json:"task_id,omitempty"`
	Hours         *float64 `json:"hours"`
	Active        bool     `json:"active"`
	Notes         *string  `json:"notes"`
	ShouldSplit   bool     `json:"should_split,omitempty"`
	SplitProjects string   `json:"split_projects,omitempty"`
}

func newTimerJSON(t domain.Timer) timerJSON {
	return timerJSON{
		ID:        t.ID,
		ProjectID: string(t.ProjectID),
		TaskID:    t.TaskID,
		Hours:     t.Hours,
		Active:    t.Active,
		Notes:     t.Notes,
	}
}

type resultJSON struct {
	Operation string    `json:"operation"`
	Timer     timerJSON `json:"timer"`
	OK        bool      `json:"ok"`
	SavedID   *int64    `json:"saved_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type ruleJSON struct {
	Index    int      `json:"index"`
	Prefix   string   `json:"prefix"`
	Projects []string `json:"projects"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

const dateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD, or RFC3339 truncated to its date, in loc.
// If empty, defaultVal is returned.
func ParseDate(val string, defaultVal time.Time, loc *time.Location) (time.Time, error) {
	if val == "" {
		return defaultVal, nil
	}
	if d, err := time.ParseInLocation(dateLayout, val, loc); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, errors.New("invalid date, expected YYYY-MM-DD or RFC3339")
}

// ParseIDs parses a comma separated list of timer ids.
func ParseIDs(val string) ([]int64, error) {
	if strings.TrimSpace(val) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.New("invalid timer id " + strconv.Quote(part))
		}
		out = append(out, id)
	}
	return out, nil
}
