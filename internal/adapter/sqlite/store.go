// Package sqlite keeps the split configuration in a local SQLite database,
// for single-user installs without a MySQL server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"timesplit/internal/codec"
	"timesplit/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS split_configurations (
	config_key TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

// Store implements ports.ConfigStore.
type Store struct {
	db  *sql.DB
	key string
	log *slog.Logger
}

// Open opens (creating if needed) the database at path and bootstraps the schema.
func Open(ctx context.Context, path, key string, log *slog.Logger) (*Store, error) {
	if key == "" {
		return nil, errors.New("sqlite: configuration key is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating %s: %w", filepath.Dir(path), err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: creating schema: %w", err)
	}
	return &Store{db: db, key: key, log: log}, nil
}

func (s *Store) LoadConfiguration(ctx context.Context) (*domain.SplitConfiguration, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM split_configurations WHERE config_key = ?", s.key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalJSON(payload)
}

func (s *Store) SaveConfiguration(ctx context.Context, cfg domain.SplitConfiguration) error {
	payload, err := codec.MarshalJSON(cfg)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO split_configurations (config_key, version, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(config_key) DO UPDATE SET
  version=excluded.version,
  payload=excluded.payload,
  updated_at=excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, s.key, codec.Version, payload, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	s.log.Debug("sqlite saved split configuration", slog.String("key", s.key), slog.Int("rules", len(cfg.Rules)))
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }
