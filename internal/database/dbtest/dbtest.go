// Package dbtest starts a disposable PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JaggerBean/FitCollector/internal/database"
)

var (
	once    sync.Once
	shared  *sqlx.DB
	initErr error
)

// tables is every table EnsureSchema creates, children first.
var tables = []string{
	"audit_logs", "push_deliveries", "push_notifications", "push_device_tokens", "bans", "step_claims",
	"server_rewards", "step_ingest", "player_keys", "api_keys", "servers",
}

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// New returns a connection to an empty schema. The container is shared by the
// test binary and every call truncates all tables. Skips without Docker.
func New(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	once.Do(func() { shared, initErr = start(context.Background()) })
	require.NoError(t, initErr)

	Truncate(t, shared)
	return shared
}

// Truncate empties every table and resets identities.
func Truncate(t testing.TB, db *sqlx.DB) {
	t.Helper()
	for _, table := range tables {
		_, err := db.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE")
		require.NoError(t, err)
	}
}

// The container is left to the testcontainers reaper when the binary exits.
func start(ctx context.Context) (*sqlx.DB, error) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// SeedServer inserts a server row.
func SeedServer(t testing.TB, db *sqlx.DB, name string, ownerID *int64, bufferDays *int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO servers (server_name, owner_user_id, claim_buffer_days) VALUES ($1, $2, $3)`, name, ownerID, bufferDays)
	require.NoError(t, err)
}

// SeedPlayerKey binds deviceID to username on server under keyHash.
func SeedPlayerKey(t testing.TB, db *sqlx.DB, keyHash, deviceID, server, username string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO player_keys (key_hash, device_id, server_name, minecraft_username) VALUES ($1, $2, $3, $4)`,
		keyHash, deviceID, server, username)
	require.NoError(t, err)
}

// SeedServerKey registers an API key hash for server.
func SeedServerKey(t testing.TB, db *sqlx.DB, keyHash, server string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO api_keys (key_hash, server_name) VALUES ($1, $2)`, keyHash, server)
	require.NoError(t, err)
}
