// Package integration runs the Postgres repositories against a real database.
// Tests are skipped unless TEST_DATABASE_URL points at a server the tests may
// create schemas on.
package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/pulse/pulse/internal/platform/db"
)

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// newSchemaPool creates a throwaway schema, migrates it and returns a pool
// whose connections all use it. The schema is dropped when the test ends.
func newSchemaPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	if err := admin.Ping(ctx); err != nil {
		admin.Close()
		t.Skipf("database unreachable: %v", err)
	}

	schema := "pulse_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, err := admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema))
		if err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	n, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx)
	require.NoError(t, err)
	require.Positive(t, n)

	seed(t, ctx, pool)
	return pool
}

var (
	seedDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	seedNow = time.Date(2025, 3, 13, 12, 0, 0, 0, time.UTC)
)

func seed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO providers VALUES ('PROV001', 'Dr. Smith', 'Family Medicine', 16), ('PROV002', 'Dr. Jones', 'Cardiology', 12)`, nil},
		{`INSERT INTO patients VALUES
			('PAT001', 'Ada Park', 54, 12.5, '10001', '555-0101', NULL, 'public_transport', FALSE),
			('PAT002', 'Ben Ruiz', 31, 3, '10002', NULL, NULL, 'car', FALSE),
			('PAT003', 'Cleo Diaz', 67, 28, '10001', NULL, NULL, 'bike', TRUE)`, nil},
		{`INSERT INTO patient_history_summary VALUES ('PAT001', 10, 7, 3, 0.3, '2025-01-02', 1)`, nil},
		{`INSERT INTO appointments VALUES
			('APT001', 'PAT001', 'PROV001', $1, $4, 'Follow-up', 'Hypertension check', 'scheduled', 30),
			('APT002', 'PAT002', 'PROV001', $2, NULL, 'Annual Physical', NULL, 'scheduled', 30),
			('APT003', 'PAT003', 'PROV002', $3, NULL, 'Follow-up', 'Medication refill', 'confirmed', 30),
			('APT004', 'PAT002', 'PROV002', $5, NULL, 'Follow-up', NULL, 'scheduled', 30)`,
			[]any{seedDay.Add(9 * time.Hour), seedDay.Add(10 * time.Hour), seedDay.Add(13 * time.Hour),
				seedDay.AddDate(0, 0, -20), seedDay.AddDate(0, 0, 1).Add(9 * time.Hour)}},
		{`INSERT INTO waitlist_patients (waitlist_id, patient_name, chief_complaint, requested_provider_id, added_at, status) VALUES
			('WL001', 'Cara Lee', 'Back pain', 'PROV001', $1, 'waiting'),
			('WL002', 'Dan Cho', 'Chest pain', NULL, $2, 'waiting')`,
			[]any{seedNow.AddDate(0, 0, -10), seedNow.AddDate(0, 0, -45)}},
		{`INSERT INTO weather_data VALUES ('W1', '2025-03-14', '10001', 'Rainy', 48, 80)`, nil},
	}
	for _, s := range stmts {
		_, err := pool.Exec(ctx, s.sql, s.args...)
		require.NoError(t, err, s.sql)
	}
}
