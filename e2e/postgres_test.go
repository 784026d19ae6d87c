package e2e_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testCleanup  func()
	testDSN      string
)

// proceduresSchema is a reduced device and pod registry schema answering
// the commands the tests send.
const proceduresSchema = `
CREATE SCHEMA IF NOT EXISTS toit_artemis;

CREATE TABLE IF NOT EXISTS toit_artemis.goals (
	device_id UUID PRIMARY KEY,
	goal JSONB
);

CREATE TABLE IF NOT EXISTS toit_artemis.events (
	device_id UUID NOT NULL,
	type TEXT NOT NULL,
	data JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE OR REPLACE FUNCTION toit_artemis.set_goal(_device_id UUID, _goal JSONB)
RETURNS VOID LANGUAGE sql AS $$
	INSERT INTO toit_artemis.goals (device_id, goal) VALUES (_device_id, _goal)
	ON CONFLICT (device_id) DO UPDATE SET goal = EXCLUDED.goal;
$$;

CREATE OR REPLACE FUNCTION toit_artemis.get_goal(_device_id UUID)
RETURNS JSONB LANGUAGE sql AS $$
	SELECT goal FROM toit_artemis.goals WHERE device_id = _device_id;
$$;

CREATE OR REPLACE FUNCTION toit_artemis.report_event(_device_id UUID, _type TEXT, _data JSONB)
RETURNS VOID LANGUAGE sql AS $$
	INSERT INTO toit_artemis.events (device_id, type, data) VALUES (_device_id, _type, _data);
$$;

CREATE OR REPLACE FUNCTION toit_artemis.get_events(_device_ids UUID[], _types TEXT[], _limit INTEGER)
RETURNS TABLE (device_id UUID, type TEXT, data JSONB) LANGUAGE sql AS $$
	SELECT e.device_id, e.type, e.data
	FROM toit_artemis.events e
	WHERE e.device_id = ANY(_device_ids) AND e.type = ANY(_types)
	ORDER BY e.created_at DESC
	LIMIT _limit;
$$;
`

// getSharedPostgresDatabase returns a shared PostgreSQL database for E2E
// tests, holding the procedures schema. The container is reused across all
// tests for performance.
func getSharedPostgresDatabase(t *testing.T) (dsn string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		testCleanup = func() {
			if testPool != nil {
				testPool.Close()
			}
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				fmt.Fprintf(os.Stderr, "failed to terminate container: %s\n", err)
			}
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			testCleanup()
			t.Fatalf("failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			testCleanup()
			t.Fatalf("could not connect to database: %v", err)
		}

		if _, err := pool.Exec(ctx, proceduresSchema); err != nil {
			testCleanup()
			t.Fatalf("could not create procedures: %v", err)
		}

		testPool = pool
		testDSN = connectionStr
	})

	if testDSN == "" {
		t.Fatal("shared postgres database is unavailable")
	}
	return testDSN
}
