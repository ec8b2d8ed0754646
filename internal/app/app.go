package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	hv "timesplit/internal/adapter/harvest"
	msql "timesplit/internal/adapter/mysql"
	"timesplit/internal/adapter/sqlite"
	"timesplit/internal/adapter/yamlfile"
	"timesplit/internal/config"
	"timesplit/internal/migrate"
	"timesplit/internal/ports"
	"timesplit/internal/usecase"
)

// ErrSplitRunning is returned when a split is triggered while another one
// is still dispatching.
var ErrSplitRunning = errors.New("split already running")

// App wires adapters and use cases.
type App struct {
	log     *slog.Logger
	loc     *time.Location
	rules   *usecase.RuleService
	uc      *usecase.SplitUseCase
	closers []func() error

	splitMu sync.Mutex
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	loc, err := time.LoadLocation(cfg.Split.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SPLIT_TZ %q: %w", cfg.Split.Timezone, err)
	}

	var (
		store      ports.ConfigStore
		dispatches ports.DispatchLog
		closers    []func() error
	)
	switch cfg.Store.Backend {
	case config.BackendMySQL:
		// Run migrations before opening the store for use
		if err := migrate.Run(ctx, cfg.Store.DSN, log); err != nil {
			return nil, err
		}
		c, err := msql.NewClient(ctx, cfg.Store.DSN, cfg.Store.Key, log)
		if err != nil {
			return nil, err
		}
		store, dispatches = c, c
		closers = append(closers, c.Close)
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.Path, cfg.Store.Key, log)
		if err != nil {
			return nil, err
		}
		store = s
		closers = append(closers, s.Close)
	default:
		store = yamlfile.New(cfg.Store.Path, log)
	}
	log.Debug("configuration store ready", slog.String("backend", cfg.Store.Backend))

	rules := usecase.NewRuleService(log, store)
	if err := rules.Load(ctx); err != nil {
		closeAll(closers)
		return nil, err
	}

	harvest := hv.NewClient(cfg.Harvest.BaseURL, cfg.Harvest.Username, cfg.Harvest.Password, log)
	uc := &usecase.SplitUseCase{
		Log:         log,
		Source:      harvest,
		Sink:        harvest,
		Auth:        harvest,
		Rules:       rules,
		Dispatches:  dispatches,
		Concurrency: cfg.Split.Concurrency,
	}

	return &App{log: log, loc: loc, rules: rules, uc: uc, closers: closers}, nil
}

// Rules returns the split rule service.
func (a *App) Rules() *usecase.RuleService { return a.rules }

// VerifyCredentials checks the Harvest credentials.
func (a *App) VerifyCredentials(ctx context.Context) (string, error) {
	u, err := a.uc.VerifyCredentials(ctx)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// Preview lists the timers of date with their split status.
func (a *App) Preview(ctx context.Context, date time.Time) (usecase.Preview, error) {
	return a.uc.Preview(ctx, date)
}

// Split runs one split of date. Only one run dispatches at a time.
func (a *App) Split(ctx context.Context, date time.Time, opts usecase.SplitOptions) (usecase.Report, error) {
	if !a.splitMu.TryLock() {
		return usecase.Report{}, ErrSplitRunning
	}
	defer a.splitMu.Unlock()
	return a.uc.SplitDay(ctx, date, opts)
}

// Today is the current date in the configured zone.
func (a *App) Today() time.Time {
	now := time.Now().In(a.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
}

// Location is the zone dates are interpreted in.
func (a *App) Location() *time.Location { return a.loc }

// Close releases the store.
func (a *App) Close() error { return closeAll(a.closers) }

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
