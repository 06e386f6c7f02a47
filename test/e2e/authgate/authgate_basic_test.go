//go:build integration

package authgate_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/stretchr/testify/require"
)

// TestBasicProtectedRoute verifies Basic credentials are checked on every request.
func TestBasicProtectedRoute(t *testing.T) {
	client := setupService(t, domain.LoginPassword)
	ctx := t.Context()

	msg, err := client.ProtectedRoute(ctx, adminUsername, adminPassword)
	require.NoError(t, err)
	require.Equal(t, "Welcome, admin. You've made it past the bouncer.", msg.Message)

	_, err = client.ProtectedRoute(ctx, adminUsername, "wrong-password")
	assertRejected(t, err, http.StatusUnauthorized, "Incorrect username or password")

	_, err = client.ProtectedRoute(ctx, "ghost", adminPassword)
	assertRejected(t, err, http.StatusUnauthorized, "Incorrect username or password")
}

// TestHealthEndpoints verifies the probes report both stores healthy.
func TestHealthEndpoints(t *testing.T) {
	client := setupService(t, domain.LoginPassword)
	ctx := t.Context()

	status, err := client.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", status.Status)

	live, err := client.GetLiveness(ctx)
	assertHealthy(t, live, err)

	ready, err := client.GetReadiness(ctx)
	assertHealthy(t, ready, err)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.UserStore)
	require.Equal(t, "ok", ready.Checks.SessionStore)
}
