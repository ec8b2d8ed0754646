package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"timesplit/internal/codec"
	"timesplit/internal/domain"
)

// Client implements ports.ConfigStore and ports.DispatchLog on MySQL.
type Client struct {
	db  *sql.DB
	key string
	log *slog.Logger
}

// NewClient opens a MySQL connection using the provided DSN. The split
// configuration is stored under key.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewClient(ctx context.Context, dsn, key string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	if key == "" {
		return nil, errors.New("mysql: configuration key is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Client{db: db, key: key, log: log}, nil
}

// LoadConfiguration reads the stored configuration document.
func (c *Client) LoadConfiguration(ctx context.Context) (*domain.SplitConfiguration, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM split_configurations WHERE config_key = ?", c.key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalJSON(payload)
}

// SaveConfiguration upserts the configuration document.
func (c *Client) SaveConfiguration(ctx context.Context, cfg domain.SplitConfiguration) error {
	payload, err := codec.MarshalJSON(cfg)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO split_configurations
  (config_key, version, payload, updated_at)
VALUES
  (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  version=VALUES(version),
  payload=VALUES(payload),
  updated_at=VALUES(updated_at);
`
	if _, err := c.db.ExecContext(ctx, q, c.key, codec.Version, payload, time.Now().UTC()); err != nil {
		return err
	}
	c.log.Debug("mysql saved split configuration", slog.String("key", c.key), slog.Int("rules", len(cfg.Rules)))
	return nil
}

// RecordDispatches stores one row per dispatched timer of a split run.
func (c *Client) RecordDispatches(ctx context.Context, runID string, results []domain.DispatchResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	const q = `
INSERT INTO split_dispatches
  (run_id, seq, operation, timer_id, project_id, hours, notes, succeeded, error, dispatched_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  operation=VALUES(operation),
  timer_id=VALUES(timer_id),
  project_id=VALUES(project_id),
  hours=VALUES(hours),
  notes=VALUES(notes),
  succeeded=VALUES(succeeded),
  error=VALUES(error),
  dispatched_at=VALUES(dispatched_at);
`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		// Prefer the id the remote assigned to created timers.
		var timerID interface{}
		if r.Saved != nil && r.Saved.ID != nil {
			timerID = *r.Saved.ID
		} else if r.Timer.ID != nil {
			timerID = *r.Timer.ID
		}
		var hours interface{}
		if r.Timer.Hours != nil {
			hours = *r.Timer.Hours
		}
		var notes interface{}
		if r.Timer.Notes != nil {
			notes = *r.Timer.Notes
		}
		var errText interface{}
		if r.Err != nil {
			errText = r.Err.Error()
		}
		if _, err := stmt.ExecContext(
			ctx,
			runID,
			i,
			string(r.Operation),
			timerID,
			string(r.Timer.ProjectID),
			hours,
			notes,
			r.Succeeded(),
			errText,
			r.DispatchedAt.UTC(),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Info("mysql recorded dispatches", slog.String("run_id", runID), slog.Int("count", len(results)))
	return nil
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }
