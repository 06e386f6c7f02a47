package authsdk

import (
	"context"
	"sync"
	"time"
)

// Session holds a bearer token obtained from POST /token. The service has
// no refresh grant; once Expired reports true, authenticate again.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// AuthenticateWithPassword obtains a token and wraps it in a Session.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.Token(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return c.NewSessionFromToken(tokenResp.AccessToken, tokenResp.ExpiresIn), nil
}

// NewSessionFromToken wraps an existing access token.
func (c *SDKClient) NewSessionFromToken(accessToken string, expiresIn int) *Session {
	return &Session{
		client:      c,
		accessToken: accessToken,
		expiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// AccessToken returns the raw bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Expired reports whether the token's advertised lifetime has passed.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !time.Now().Before(s.expiresAt)
}

// Profile calls GET /profile with the session's token.
func (s *Session) Profile(ctx context.Context) (*ProfileResponse, error) {
	return s.client.ProfileWithToken(ctx, s.AccessToken())
}
