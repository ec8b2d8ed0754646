// Package yamlfile keeps the split configuration in a YAML file that users
// can also edit by hand.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"timesplit/internal/codec"
	"timesplit/internal/domain"
)

// Store implements ports.ConfigStore on a single file.
type Store struct {
	path string
	log  *slog.Logger
}

func New(path string, log *slog.Logger) *Store {
	return &Store{path: path, log: log}
}

func (s *Store) LoadConfiguration(_ context.Context) (*domain.SplitConfiguration, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalYAML(b)
}

// SaveConfiguration writes to a temporary file next to the target and
// renames it over the target, so readers never see a partial document.
func (s *Store) SaveConfiguration(_ context.Context, cfg domain.SplitConfiguration) error {
	b, err := codec.MarshalYAML(cfg)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".splits-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}
	s.log.Debug("saved split configuration", slog.String("path", s.path), slog.Int("rules", len(cfg.Rules)))
	return nil
}
