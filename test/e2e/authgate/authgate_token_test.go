//go:build integration

package authgate_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/stretchr/testify/require"
)

// TestTokenFlow exchanges a password for a bearer token and uses it on /profile.
func TestTokenFlow(t *testing.T) {
	client := setupService(t, domain.LoginPassword)
	ctx := t.Context()

	tok, err := client.Token(ctx, aliceUsername, alicePassword)
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "bearer", tok.TokenType)
	require.Equal(t, 1800, tok.ExpiresIn)

	profile, err := client.ProfileWithToken(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, aliceUsername, profile.Username)
	require.Equal(t, "Alice Anderson", profile.FullName)
	require.Equal(t, "bearer", profile.AuthMethod)
}

// TestTokenRejections covers bad credentials, disabled users and forged tokens.
func TestTokenRejections(t *testing.T) {
	client := setupService(t, domain.LoginPassword)
	ctx := t.Context()

	_, err := client.Token(ctx, aliceUsername, "looking-glass")
	assertRejected(t, err, http.StatusUnauthorized, "Incorrect username or password")

	_, err = client.Token(ctx, "mallory", "not-welcome")
	assertRejected(t, err, http.StatusBadRequest, "Inactive user")

	tok, err := client.Token(ctx, bobUsername, bobPassword)
	require.NoError(t, err)

	// Flip one character of the signature.
	forged := []byte(tok.AccessToken)
	last := len(forged) - 2
	if forged[last] == 'A' {
		forged[last] = 'B'
	} else {
		forged[last] = 'A'
	}
	_, err = client.ProfileWithToken(ctx, string(forged))
	assertRejected(t, err, http.StatusUnauthorized, "Invalid token")

	_, err = client.ProfileWithToken(ctx, "not-a-jwt")
	assertRejected(t, err, http.StatusUnauthorized, "Invalid token")
}

// TestTokenFromAnotherInstance verifies a token minted with a different key
// is rejected.
func TestTokenFromAnotherInstance(t *testing.T) {
	first := setupService(t, domain.LoginPassword)
	second := setupService(t, domain.LoginPassword)
	ctx := t.Context()

	tok, err := first.Token(ctx, aliceUsername, alicePassword)
	require.NoError(t, err)

	_, err = second.ProfileWithToken(ctx, tok.AccessToken)
	assertRejected(t, err, http.StatusUnauthorized, "Invalid token")
}
