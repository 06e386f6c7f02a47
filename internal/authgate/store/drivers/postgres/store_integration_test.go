//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway postgres container and returns a migrated
// store connected to it.
func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "authgate",
				"POSTGRES_PASSWORD": "authgate",
				"POSTGRES_DB":       "authgate",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://authgate:authgate@%s:%s/authgate?sslmode=disable", host, port.Port())
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations(ctx))
	require.NoError(t, s.ApplyMigrations(ctx))
	return s
}

func TestPostgresStore(t *testing.T) {
	s := startPostgres(t)

	reset := func(t *testing.T) *Store {
		_, err := s.pool.Exec(context.Background(), `TRUNCATE users, sessions`)
		require.NoError(t, err)
		return s
	}

	t.Run("users", func(t *testing.T) {
		storetest.RunUsers(t, func(t *testing.T) store.UserStore { return reset(t) })
	})
	t.Run("sessions", func(t *testing.T) {
		storetest.RunSessions(t, storetest.SessionOptions{}, func(t *testing.T) store.SessionStore { return reset(t) })
	})
}
