//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	msql "timesplit/internal/adapter/mysql"
	"timesplit/internal/domain"
	"timesplit/internal/migrate"
	"timesplit/internal/usecase"
)

func startMySQL(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      "testdb",
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_USER":          "test",
			"MYSQL_PASSWORD":      "pass",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = mysqlC.Terminate(context.Background()) })

	host, err := mysqlC.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := mysqlC.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true", "test", "pass", host, port.Port(), "testdb")
}

func TestMySQLStore_ConfigurationAndDispatches(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	ctx := context.Background()
	dsn := startMySQL(t, ctx)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := migrate.Run(ctx, dsn, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Applying twice is a no-op.
	if err := migrate.Run(ctx, dsn, logger); err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	ms, err := migrate.Status(ctx, dsn)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, m := range ms {
		if !m.Applied {
			t.Fatalf("migration %s not applied", m.File)
		}
	}

	store, err := msql.NewClient(ctx, dsn, "splitConfiguration", logger)
	if err != nil {
		t.Fatalf("mysql client: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	got, err := store.LoadConfiguration(ctx)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no configuration, got %+v", got)
	}

	// Loading the rules on an empty store saves an empty configuration.
	rules := usecase.NewRuleService(logger, store)
	if err := rules.Load(ctx); err != nil {
		t.Fatalf("rules load: %v", err)
	}
	got, err = store.LoadConfiguration(ctx)
	if err != nil || got == nil || len(got.Rules) != 0 {
		t.Fatalf("expected empty stored configuration, got %+v (%v)", got, err)
	}

	if _, err := rules.AddRule(ctx, "SPLIT", []domain.ProjectID{"1", "2"}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if _, err := rules.AddRule(ctx, "SPLITALL", []domain.ProjectID{"1", "2", "3"}); err != nil {
		t.Fatalf("add rule 2: %v", err)
	}
	got, err = store.LoadConfiguration(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Rules) != 2 || got.Rules[1].Prefix != "SPLITALL" || len(got.Rules[1].ProjectIDs) != 3 {
		t.Fatalf("unexpected stored configuration: %+v", got)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("sql open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM split_configurations").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 configuration row after upserts, got %d", count)
	}

	id, half := int64(42), 2.0
	notes := "review"
	now := time.Now()
	results := []domain.DispatchResult{
		{Timer: domain.Timer{ID: &id, ProjectID: "1", Hours: &half, Notes: &notes}, Operation: domain.OperationUpdate, Saved: &domain.Timer{ID: &id}, DispatchedAt: now},
		{Timer: domain.Timer{ProjectID: "2", Hours: &half, Notes: &notes}, Operation: domain.OperationCreate, Err: errors.New("boom"), DispatchedAt: now},
	}
	if err := store.RecordDispatches(ctx, "run-1", results); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Recording the same run again updates in place.
	if err := store.RecordDispatches(ctx, "run-1", results); err != nil {
		t.Fatalf("record again: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM split_dispatches WHERE run_id = ?", "run-1").Scan(&count); err != nil {
		t.Fatalf("count dispatches: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 dispatch rows, got %d", count)
	}
	var failed int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM split_dispatches WHERE run_id = ? AND succeeded = FALSE", "run-1").Scan(&failed); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed dispatch, got %d", failed)
	}
}
