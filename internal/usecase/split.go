package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"timesplit/internal/domain"
	"timesplit/internal/ports"
)

// SplitUseCase coordinates fetching a day from Harvest, splitting the
// selected timers and sending the results back.
type SplitUseCase struct {
	Log         *slog.Logger
	Source      ports.TimerSource
	Sink        ports.TimerSink
	Auth        ports.Authenticator
	Rules       *RuleService
	Dispatches  ports.DispatchLog // optional
	Concurrency int
	Now         func() time.Time
}

// TimerView is what a listing shows for one timer.
type TimerView struct {
	Timer       domain.Timer
	ShouldSplit bool
	Rule        *domain.SplitRule
	Projects    string // the matched rule's project ids, comma separated
}

// Preview is a day's timers with their split status.
type Preview struct {
	Day   domain.Day
	Views []TimerView
}

// SplitOptions narrows a split run.
type SplitOptions struct {
	// Only restricts the run to these timer ids. Empty means every timer
	// whose notes match a rule.
	Only   []int64
	DryRun bool
}

// Report is the outcome of a split run, one result per produced timer.
type Report struct {
	RunID   string
	Date    time.Time
	DryRun  bool
	Results []domain.DispatchResult
}

// Failed returns the results the remote rejected.
func (r Report) Failed() []domain.DispatchResult {
	var out []domain.DispatchResult
	for _, res := range r.Results {
		if !res.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the per-entry failures, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s timer for project %s: %w", res.Operation, res.Timer.ProjectID, res.Err))
	}
	return errors.Join(errs...)
}

func (uc *SplitUseCase) check() error {
	if uc.Source == nil || uc.Sink == nil || uc.Rules == nil {
		return errors.New("usecase not initialized: missing dependencies")
	}
	return nil
}

// VerifyCredentials asks Harvest who the configured credentials belong to.
func (uc *SplitUseCase) VerifyCredentials(ctx context.Context) (domain.User, error) {
	if uc.Auth == nil {
		return domain.User{}, errors.New("usecase not initialized: missing authenticator")
	}
	u, err := uc.Auth.WhoAmI(ctx)
	if err != nil {
		return domain.User{}, err
	}
	uc.Log.Info("credentials verified", slog.String("email", u.Email))
	return u, nil
}

// Preview fetches date and marks which timers would be split.
func (uc *SplitUseCase) Preview(ctx context.Context, date time.Time) (Preview, error) {
	if err := uc.check(); err != nil {
		return Preview{}, err
	}
	cfg, err := uc.Rules.Configuration()
	if err != nil {
		return Preview{}, err
	}
	uc.Log.Info("fetching timers", slog.String("date", date.Format("2006-01-02")))
	day, err := uc.Source.DailyTimers(ctx, date)
	if err != nil {
		return Preview{}, err
	}
	uc.Log.Info("fetched timers", slog.Int("count", len(day.Timers)))

	views := make([]TimerView, 0, len(day.Timers))
	for _, t := range day.Timers {
		views = append(views, Describe(t, cfg))
	}
	return Preview{Day: day, Views: views}, nil
}

// Describe builds the view of t under cfg. Timers without notes never split.
func Describe(t domain.Timer, cfg domain.SplitConfiguration) TimerView {
	v := TimerView{Timer: t}
	notes := ""
	if t.Notes != nil {
		notes = *t.Notes
	}
	if rule, ok := cfg.Match(notes); ok {
		v.ShouldSplit = true
		v.Rule = &rule
		ids := make([]string, 0, len(rule.ProjectIDs))
		for _, p := range rule.ProjectIDs {
			ids = append(ids, string(p))
		}
		v.Projects = strings.Join(ids, ", ")
	}
	return v
}

// SplitDay splits the selected timers of date and dispatches the results.
func (uc *SplitUseCase) SplitDay(ctx context.Context, date time.Time, opts SplitOptions) (Report, error) {
	preview, err := uc.Preview(ctx, date)
	if err != nil {
		return Report{}, err
	}
	cfg, err := uc.Rules.Configuration()
	if err != nil {
		return Report{}, err
	}

	var selected []domain.Timer
	for _, v := range preview.Views {
		if !v.ShouldSplit {
			continue
		}
		if len(opts.Only) > 0 && (v.Timer.ID == nil || !slices.Contains(opts.Only, *v.Timer.ID)) {
			continue
		}
		selected = append(selected, v.Timer)
	}
	if len(opts.Only) > 0 && len(selected) < len(opts.Only) {
		uc.Log.Warn("some requested timers are missing or have no matching split",
			slog.Int("requested", len(opts.Only)), slog.Int("selected", len(selected)))
	}

	var produced []domain.Timer
	for _, t := range selected {
		out := domain.SplitTimer(t, cfg)
		if len(out) == 1 {
			// Nothing to redistribute; the timer is left as it is.
			uc.Log.Debug("timer needs no split", slog.String("project", string(t.ProjectID)))
			continue
		}
		produced = append(produced, out...)
	}

	report := Report{RunID: uuid.NewString(), Date: date, DryRun: opts.DryRun}
	if len(produced) == 0 {
		uc.Log.Info("no timers to split")
		return report, nil
	}

	if opts.DryRun {
		for _, t := range produced {
			report.Results = append(report.Results, domain.DispatchResult{Timer: t, Operation: domain.OperationFor(t)})
		}
		return report, nil
	}

	report.Results = uc.Dispatch(ctx, produced)
	if uc.Dispatches != nil {
		if err := uc.Dispatches.RecordDispatches(ctx, report.RunID, report.Results); err != nil {
			uc.Log.Error("recording dispatches failed", slog.String("run_id", report.RunID), slog.String("error", err.Error()))
		}
	}
	uc.Log.Info("split completed",
		slog.String("run_id", report.RunID),
		slog.Int("timers", len(report.Results)),
		slog.Int("failed", len(report.Failed())),
	)
	return report, nil
}

// Dispatch sends each timer to the sink: update when it has an id, create
// otherwise. Calls run concurrently and independently; a failure is kept in
// that timer's result and does not stop the others.
func (uc *SplitUseCase) Dispatch(ctx context.Context, timers []domain.Timer) []domain.DispatchResult {
	results := make([]domain.DispatchResult, len(timers))
	limit := uc.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, t := range timers {
		i, t := i, t
		g.Go(func() error {
			results[i] = uc.dispatchOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (uc *SplitUseCase) dispatchOne(ctx context.Context, t domain.Timer) domain.DispatchResult {
	res := domain.DispatchResult{Timer: t, Operation: domain.OperationFor(t)}
	var (
		saved domain.Timer
		err   error
	)
	switch res.Operation {
	case domain.OperationUpdate:
		saved, err = uc.Sink.UpdateTimer(ctx, t)
	default:
		saved, err = uc.Sink.CreateTimer(ctx, t)
	}
	res.DispatchedAt = uc.now()
	if err != nil {
		res.Err = err
		uc.Log.Error("dispatch failed",
			slog.String("operation", string(res.Operation)),
			slog.String("project", string(t.ProjectID)),
			slog.String("error", err.Error()),
		)
		return res
	}
	res.Saved = &saved
	return res
}

func (uc *SplitUseCase) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now().UTC()
}
