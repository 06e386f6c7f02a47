package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

const (
	DefaultSessionLifetime      = 12 * time.Hour
	DefaultSessionIdleTimeout   = 30 * time.Minute
	DefaultSessionTouchInterval = time.Minute

	// createAttempts bounds retries on a fingerprint collision, which at
	// 256 bits of entropy only a broken random source produces.
	createAttempts = 3
)

// SessionConfig configures a SessionManager. Zero values take the defaults
// above; a negative IdleTimeout disables the idle check.
type SessionConfig struct {
	Lifetime      time.Duration
	IdleTimeout   time.Duration
	TouchInterval time.Duration
	Now           func() time.Time
}

// SessionManager owns the session lifecycle. Clients hold a random id; the
// store is keyed by the id's fingerprint so a leaked store row cannot be
// replayed as a cookie.
type SessionManager struct {
	Store  store.SessionStore
	cookie *cookiex.Codec
	cfg    SessionConfig
}

func NewSessionManager(st store.SessionStore, cookie *cookiex.Codec, cfg SessionConfig) *SessionManager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultSessionLifetime
	}
	switch {
	case cfg.IdleTimeout == 0:
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	case cfg.IdleTimeout < 0:
		cfg.IdleTimeout = 0
	}
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = DefaultSessionTouchInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionManager{Store: st, cookie: cookie, cfg: cfg}
}

// Lifetime returns the absolute session lifetime.
func (m *SessionManager) Lifetime() time.Duration { return m.cfg.Lifetime }

// Create stores data under a fresh identifier and returns the identifier.
func (m *SessionManager) Create(ctx context.Context, data domain.SessionData) (string, error) {
	now := m.cfg.Now().UTC()

	for range createAttempts {
		id, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return "", fmt.Errorf("generate session id: %w", err)
		}

		err = m.Store.Sessions().CreateSession(ctx, domain.Session{
			ID:         cryptox.FingerprintToken(id),
			Data:       data,
			CreatedAt:  now,
			LastSeenAt: now,
			ExpiresAt:  now.Add(m.cfg.Lifetime),
		})
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, store.ErrAlreadyExists):
			slogx.FromContext(ctx).Warn("session id collision, retrying")
			continue
		default:
			return "", fmt.Errorf("create session: %w", err)
		}
	}
	return "", errors.New("create session: exhausted id attempts")
}

// Read returns the live session for id. Missing, expired and idle sessions
// all yield store.ErrNotFound; the latter two are deleted on the way out.
func (m *SessionManager) Read(ctx context.Context, id string) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, store.ErrNotFound
	}
	key := cryptox.FingerprintToken(id)
	now := m.cfg.Now().UTC()

	sess, err := m.Store.Sessions().GetSession(ctx, key)
	if err != nil {
		return domain.Session{}, err
	}

	if !sess.Live(now, m.cfg.IdleTimeout) {
		if err := m.Store.Sessions().DeleteSession(ctx, key); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete stale session", slog.Any("error", err))
		}
		return domain.Session{}, store.ErrNotFound
	}

	if now.Sub(sess.LastSeenAt) >= m.cfg.TouchInterval {
		err := m.Store.Sessions().TouchSession(ctx, key, now)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Deleted between the read and the touch.
			return domain.Session{}, store.ErrNotFound
		case err != nil:
			slogx.FromContext(ctx).Warn("failed to touch session", slog.Any("error", err))
		default:
			sess.LastSeenAt = now
		}
	}

	return sess, nil
}

// Delete removes the session for id. Unknown ids are not an error.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.Store.Sessions().DeleteSession(ctx, cryptox.FingerprintToken(id))
}

// Issue attaches id to the response as the signed session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, id string) error {
	return m.cookie.Write(w, id)
}

// Clear expires the session cookie on the client.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	m.cookie.Clear(w)
}

// FromRequest returns the session id carried by r's cookie. It returns
// cookiex.ErrNoCookie when absent and cookiex.ErrInvalid when the cookie
// fails verification; neither touches the store.
func (m *SessionManager) FromRequest(r *http.Request) (string, error) {
	return m.cookie.Read(r)
}
