package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/memory"
	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

var carol = domain.SessionData{Username: "carol", FullName: "Carol Cookie", LoginMode: domain.LoginTrust}

func newSessionManager(t *testing.T, clock *fakeClock) (*service.SessionManager, *memory.Store) {
	t.Helper()
	codec, err := cookiex.New([]byte("session-hash-key-0123456789abcdef"), nil, cookiex.Options{
		Name:   "session_id",
		MaxAge: service.DefaultSessionLifetime,
	})
	require.NoError(t, err)

	st := memory.New()
	return service.NewSessionManager(st, codec, service.SessionConfig{Now: clock.Now}), st
}

func TestSessionManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t, newFakeClock())

	id, err := m.Create(ctx, carol)
	require.NoError(t, err)
	require.Len(t, id, 43, "256-bit base64url id")

	sess, err := m.Read(ctx, id)
	require.NoError(t, err)
	require.Equal(t, carol, sess.Data)

	require.NoError(t, m.Delete(ctx, id))
	_, err = m.Read(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, m.Delete(ctx, id))
	require.NoError(t, m.Delete(ctx, ""))
}

func TestSessionManager_StoresFingerprint(t *testing.T) {
	ctx := context.Background()
	m, st := newSessionManager(t, newFakeClock())

	id, err := m.Create(ctx, carol)
	require.NoError(t, err)

	_, err = st.Sessions().GetSession(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound, "raw id must not be a store key")

	rec, err := st.Sessions().GetSession(ctx, cryptox.FingerprintToken(id))
	require.NoError(t, err)
	require.Equal(t, "carol", rec.Data.Username)
	require.Equal(t, rec.CreatedAt.Add(service.DefaultSessionLifetime), rec.ExpiresAt)
}

func TestSessionManager_UnknownID(t *testing.T) {
	m, _ := newSessionManager(t, newFakeClock())

	_, err := m.Read(context.Background(), "")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = m.Read(context.Background(), "never-issued")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionManager_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	m, _ := newSessionManager(t, newFakeClock())

	const n = 64
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Create(ctx, carol)
			if err == nil {
				ids[i] = id
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate session id")
		seen[id] = true
	}
}

func TestSessionManager_IdleTimeout(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, st := newSessionManager(t, clock)

	id, err := m.Create(ctx, carol)
	require.NoError(t, err)

	// Activity within the idle window keeps the session alive.
	for range 4 {
		clock.Advance(20 * time.Minute)
		_, err := m.Read(ctx, id)
		require.NoError(t, err)
	}

	clock.Advance(31 * time.Minute)
	_, err = m.Read(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The stale record is gone, not just hidden.
	_, err = st.Sessions().GetSession(ctx, cryptox.FingerprintToken(id))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionManager_AbsoluteLifetime(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, _ := newSessionManager(t, clock)

	id, err := m.Create(ctx, carol)
	require.NoError(t, err)

	for clock.Now().Before(time.Date(2025, 6, 1, 20, 40, 0, 0, time.UTC)) {
		clock.Advance(20 * time.Minute)
		_, err := m.Read(ctx, id)
		require.NoError(t, err)
	}

	clock.Advance(25 * time.Minute)
	_, err = m.Read(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound, "12h lifetime exceeded despite activity")
}

func TestSessionManager_TouchThrottled(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m, st := newSessionManager(t, clock)

	id, err := m.Create(ctx, carol)
	require.NoError(t, err)
	created := clock.Now()
	key := cryptox.FingerprintToken(id)

	clock.Advance(30 * time.Second)
	_, err = m.Read(ctx, id)
	require.NoError(t, err)
	rec, err := st.Sessions().GetSession(ctx, key)
	require.NoError(t, err)
	require.True(t, rec.LastSeenAt.Equal(created), "touch throttled inside a minute")

	clock.Advance(time.Minute)
	sess, err := m.Read(ctx, id)
	require.NoError(t, err)
	require.True(t, sess.LastSeenAt.Equal(clock.Now()))
	rec, err = st.Sessions().GetSession(ctx, key)
	require.NoError(t, err)
	require.True(t, rec.LastSeenAt.Equal(clock.Now()))
}

func TestSessionManager_Cookie(t *testing.T) {
	m, _ := newSessionManager(t, newFakeClock())

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, "opaque-session-id"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	ck := cookies[0]
	require.Equal(t, "session_id", ck.Name)
	require.True(t, ck.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	require.NotContains(t, ck.Value, "opaque-session-id", "value is signed, not raw")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(ck)
	id, err := m.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "opaque-session-id", id)

	forged := httptest.NewRequest(http.MethodGet, "/profile", nil)
	forged.AddCookie(&http.Cookie{Name: "session_id", Value: "opaque-session-id"})
	_, err = m.FromRequest(forged)
	require.ErrorIs(t, err, cookiex.ErrInvalid)

	_, err = m.FromRequest(httptest.NewRequest(http.MethodGet, "/profile", nil))
	require.ErrorIs(t, err, cookiex.ErrNoCookie)

	cleared := httptest.NewRecorder()
	m.Clear(cleared)
	ck = cleared.Result().Cookies()[0]
	require.Equal(t, "session_id", ck.Name)
	require.Empty(t, ck.Value)
	require.Equal(t, -1, ck.MaxAge)
}
