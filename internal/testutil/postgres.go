package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MembersDDL creates the tables of MembersSchema.
const MembersDDL = `
CREATE TABLE users (id bigint PRIMARY KEY, email text NOT NULL UNIQUE);
CREATE TABLE organizations (id bigint PRIMARY KEY, name text NOT NULL);
CREATE TABLE members (
	user_id bigint NOT NULL REFERENCES users (id),
	org_id bigint NOT NULL REFERENCES organizations (id),
	PRIMARY KEY (user_id, org_id)
);
CREATE TABLE projects (
	id bigint PRIMARY KEY,
	organization_id bigint REFERENCES organizations (id)
);
`

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton lazily starts one PostgreSQL container for the test binary.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// ryuk removes the container when the test binary exits
		singletonDSN = dsn
	})
	return singletonDSN, singletonErr
}

// Postgres returns a pool on a fresh database created with ddl. The test is
// skipped in -short mode or when no container runtime is available.
func Postgres(t *testing.T, ddl string) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL test in short mode")
	}

	dsn, err := ensureSingleton()
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}

	ctx := context.Background()
	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer admin.Close()

	buf := make([]byte, 6)
	_, err = rand.Read(buf)
	require.NoError(t, err)
	dbName := "relsub_" + hex.EncodeToString(buf)
	_, err = admin.Exec(ctx, "CREATE DATABASE "+dbName)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, strings.Replace(dsn, "/postgres?", "/"+dbName+"?", 1))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, ddl)
	require.NoError(t, err)
	return pool
}
