package database

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/logging"
)

// TestPostgresEnvVar names the environment variable holding the libpq connection string of a server tests
// may create databases on.  Tests needing postgres are skipped when it is unset.
const TestPostgresEnvVar = "NEWSLOADER_TEST_POSTGRES"

// TestConnectionString returns the connection string for test databases and whether one is configured.
func TestConnectionString() (string, bool) {
	s := strings.TrimSpace(os.Getenv(TestPostgresEnvVar))
	return s, s != ""
}

// WithTestDb creates a dedicated database for a test
//
//	schema: statements executed against the new database before entering the action callback
//	action: callback for client code
//
// The database is dropped once action returns.
func WithTestDb(ctx context.Context, schema []string, action func(db *pgxpool.Pool) error) error {
	connectionString, ok := TestConnectionString()
	if !ok {
		return errors.Errorf("%s is not set", TestPostgresEnvVar)
	}

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, err := pgx.Connect(ctx, connectionString)
	if err != nil {
		return errors.WithStack(err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "CREATE DATABASE "+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	// Connect again: this time to the database we just created.  This is the database we use for tests
	testDbPool, err := pgxpool.New(ctx, connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		testDbPool.Close()
		// disconnect all db users before cleanup
		_, err := conn.Exec(context.Background(),
			`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = $1`, dbName)
		if err != nil {
			logging.WithError(err).Warn("Failed to disconnect users")
		}
		_, err = conn.Exec(context.Background(), "DROP DATABASE "+dbName)
		if err != nil {
			logging.WithError(err).Warnf("Failed to drop database %s", dbName)
		}
	}()

	for _, statement := range schema {
		if _, err := testDbPool.Exec(ctx, statement); err != nil {
			return errors.WithStack(err)
		}
	}

	return action(testDbPool)
}
