package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"timesplit/internal/domain"
	"timesplit/internal/ports"
)

// ErrNotLoaded is returned when the configuration is used before Load.
var ErrNotLoaded = errors.New("split configuration not loaded")

// RuleService owns the process-wide split configuration. It is loaded once
// with Load and written back to the store after every mutation.
type RuleService struct {
	log   *slog.Logger
	store ports.ConfigStore

	mu  sync.Mutex
	cfg *domain.SplitConfiguration
}

func NewRuleService(log *slog.Logger, store ports.ConfigStore) *RuleService {
	return &RuleService{log: log, store: store}
}

// Load reads the configuration from the store. Missing or corrupt data is
// replaced with an empty configuration, which is saved right away so the
// next load sees the same thing.
func (s *RuleService) Load(ctx context.Context) error {
	if s.store == nil {
		return errors.New("rule service not initialized: missing store")
	}
	cfg, err := s.store.LoadConfiguration(ctx)
	switch {
	case errors.Is(err, domain.ErrCorruptConfiguration):
		s.log.Warn("stored split configuration is unreadable, starting empty", slog.String("error", err.Error()))
		cfg = nil
	case err != nil:
		return err
	}

	if cfg == nil {
		cfg = &domain.SplitConfiguration{}
		if err := s.store.SaveConfiguration(ctx, *cfg); err != nil {
			return err
		}
		s.log.Info("initialized empty split configuration")
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Debug("split configuration loaded", slog.Int("rules", len(cfg.Rules)))
	return nil
}

// Configuration returns a copy of the current configuration.
func (s *RuleService) Configuration() (domain.SplitConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return domain.SplitConfiguration{}, ErrNotLoaded
	}
	return s.cfg.Clone(), nil
}

// AddRule appends a rule and returns its index.
func (s *RuleService) AddRule(ctx context.Context, prefix string, projects []domain.ProjectID) (int, error) {
	var index int
	err := s.mutate(ctx, func(cfg *domain.SplitConfiguration) error {
		r := domain.SplitRule{Prefix: prefix}
		r.SetProjects(projects)
		if err := cfg.Add(r); err != nil {
			return err
		}
		index = len(cfg.Rules) - 1
		return nil
	})
	return index, err
}

func (s *RuleService) RemoveRule(ctx context.Context, index int) error {
	return s.mutate(ctx, func(cfg *domain.SplitConfiguration) error {
		return cfg.Remove(index)
	})
}

func (s *RuleService) RenameRule(ctx context.Context, index int, prefix string) error {
	return s.edit(ctx, index, func(r *domain.SplitRule) { r.Prefix = prefix })
}

func (s *RuleService) SetRuleProjects(ctx context.Context, index int, projects []domain.ProjectID) error {
	return s.edit(ctx, index, func(r *domain.SplitRule) { r.SetProjects(projects) })
}

func (s *RuleService) ToggleRuleProject(ctx context.Context, index int, project domain.ProjectID) error {
	return s.edit(ctx, index, func(r *domain.SplitRule) { r.ToggleProject(project) })
}

func (s *RuleService) edit(ctx context.Context, index int, fn func(*domain.SplitRule)) error {
	return s.mutate(ctx, func(cfg *domain.SplitConfiguration) error {
		r, err := cfg.Rule(index)
		if err != nil {
			return err
		}
		fn(&r)
		return cfg.Replace(index, r)
	})
}

// mutate applies fn to the live configuration and saves it. A rejected
// mutation is not saved. A failed save is returned but the in-memory change
// stays, so the next successful save persists it.
func (s *RuleService) mutate(ctx context.Context, fn func(*domain.SplitConfiguration) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return ErrNotLoaded
	}
	if err := fn(s.cfg); err != nil {
		return err
	}
	if err := s.store.SaveConfiguration(ctx, s.cfg.Clone()); err != nil {
		s.log.Error("saving split configuration failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
