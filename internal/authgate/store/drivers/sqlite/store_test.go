package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/storetest"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "authgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations(context.Background()))
	return s
}

func TestUsers(t *testing.T) {
	storetest.RunUsers(t, func(t *testing.T) store.UserStore { return newStore(t) })
}

func TestSessions(t *testing.T) {
	storetest.RunSessions(t, storetest.SessionOptions{}, func(t *testing.T) store.SessionStore { return newStore(t) })
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations(context.Background()))
}
