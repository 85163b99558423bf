package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresTestsEnvVar enables the tests that need a Docker daemon
const PostgresTestsEnvVar = "CAMPAIGN_PG_TESTS"

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// SetupTestDBContainer starts an empty Postgres container and returns its
// connection string. The test is skipped unless CAMPAIGN_PG_TESTS is set.
func SetupTestDBContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	if os.Getenv(PostgresTestsEnvVar) == "" {
		t.Skipf("set %s to run tests against PostgreSQL", PostgresTestsEnvVar)
	}

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cleanupFunc := func() {
		tc.CleanupContainer(t, postgresContainer)
	}
	return connStr, cleanupFunc
}

// SetupTestDB starts a Postgres container with every migration applied
func SetupTestDB(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	connStr, cleanupFunc := SetupTestDBContainer(t, ctx)

	m, err := GetMigrate(connStr)
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Up())

	return connStr, cleanupFunc
}
