// Package storetest holds the behavioural suite every store driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Drivers round timestamps differently; everything the suite writes is
// already at millisecond precision.
func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func newUser(username string) domain.User {
	ts := now()
	return domain.User{
		ID:           idx.New().String(),
		Username:     username,
		FullName:     "Full " + username,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

// RunUsers exercises a store.UserStore. newStore must return an empty,
// migrated store.
func RunUsers(t *testing.T, newStore func(t *testing.T) store.UserStore) {
	ctx := context.Background()

	t.Run("lookup missing user", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Users().GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create and lookup", func(t *testing.T) {
		s := newStore(t)
		empty, err := s.Users().IsEmpty(ctx)
		require.NoError(t, err)
		require.True(t, empty)

		u := newUser("alice")
		require.NoError(t, s.Users().CreateUser(ctx, u))

		got, err := s.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, u.Username, got.Username)
		require.Equal(t, u.FullName, got.FullName)
		require.Equal(t, u.PasswordHash, got.PasswordHash)
		require.False(t, got.Disabled)
		require.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

		empty, err = s.Users().IsEmpty(ctx)
		require.NoError(t, err)
		require.False(t, empty)
	})

	t.Run("usernames are case sensitive keys", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Users().CreateUser(ctx, newUser("alice")))
		_, err := s.Users().GetUserByUsername(ctx, "Alice")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicates are rejected", func(t *testing.T) {
		s := newStore(t)
		u := newUser("bob")
		require.NoError(t, s.Users().CreateUser(ctx, u))

		dupName := newUser("bob")
		require.ErrorIs(t, s.Users().CreateUser(ctx, dupName), store.ErrAlreadyExists)

		dupID := newUser("robert")
		dupID.ID = u.ID
		require.ErrorIs(t, s.Users().CreateUser(ctx, dupID), store.ErrAlreadyExists)
	})

	t.Run("set disabled", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Users().CreateUser(ctx, newUser("mallory")))

		require.NoError(t, s.Users().SetDisabled(ctx, "mallory", true))
		got, err := s.Users().GetUserByUsername(ctx, "mallory")
		require.NoError(t, err)
		require.True(t, got.Disabled)

		require.NoError(t, s.Users().SetDisabled(ctx, "mallory", false))
		got, err = s.Users().GetUserByUsername(ctx, "mallory")
		require.NoError(t, err)
		require.False(t, got.Disabled)

		require.ErrorIs(t, s.Users().SetDisabled(ctx, "nobody", true), store.ErrNotFound)
	})

	t.Run("transaction commit and rollback", func(t *testing.T) {
		s := newStore(t)
		boom := errors.New("boom")

		err := s.WithTx(ctx, func(u store.Users) error {
			if err := u.CreateUser(ctx, newUser("carol")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = s.Users().GetUserByUsername(ctx, "carol")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.WithTx(ctx, func(u store.Users) error {
			return u.CreateUser(ctx, newUser("carol"))
		}))
		_, err = s.Users().GetUserByUsername(ctx, "carol")
		require.NoError(t, err)
	})

	t.Run("list users", func(t *testing.T) {
		s := newStore(t)
		users, err := s.Users().ListUsers(ctx)
		require.NoError(t, err)
		require.Empty(t, users)

		for _, name := range []string{"mallory", "alice", "bob"} {
			require.NoError(t, s.Users().CreateUser(ctx, newUser(name)))
		}
		users, err = s.Users().ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		require.Equal(t, []string{"alice", "bob", "mallory"},
			[]string{users[0].Username, users[1].Username, users[2].Username})
		require.Equal(t, newUser("x").PasswordHash, users[0].PasswordHash)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(ctx))
	})
}

// SessionOptions adjusts the session suite for backend capabilities.
type SessionOptions struct {
	// NativeTTL marks backends that expire records on their own clock, so
	// DeleteExpiredSessions with a synthetic now is not meaningful.
	NativeTTL bool
}

func newSession(id string, ttl time.Duration) domain.Session {
	ts := now()
	return domain.Session{
		ID: id,
		Data: domain.SessionData{
			Username:  "carol",
			FullName:  "Carol Danvers",
			LoginMode: domain.LoginTrust,
		},
		CreatedAt:  ts,
		LastSeenAt: ts,
		ExpiresAt:  ts.Add(ttl),
	}
}

// RunSessions exercises a store.SessionStore.
func RunSessions(t *testing.T, opts SessionOptions, newStore func(t *testing.T) store.SessionStore) {
	ctx := context.Background()

	t.Run("lookup missing session", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Sessions().GetSession(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create read delete", func(t *testing.T) {
		s := newStore(t)
		sess := newSession("sess-1", time.Hour)
		require.NoError(t, s.Sessions().CreateSession(ctx, sess))

		got, err := s.Sessions().GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, sess.ID, got.ID)
		require.Equal(t, sess.Data, got.Data)
		require.WithinDuration(t, sess.CreatedAt, got.CreatedAt, time.Millisecond)
		require.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Millisecond)

		require.NoError(t, s.Sessions().DeleteSession(ctx, sess.ID))
		_, err = s.Sessions().GetSession(ctx, sess.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		// Idempotent.
		require.NoError(t, s.Sessions().DeleteSession(ctx, sess.ID))
		require.NoError(t, s.Sessions().DeleteSession(ctx, "never-existed"))
	})

	t.Run("create never overwrites", func(t *testing.T) {
		s := newStore(t)
		first := newSession("sess-dup", time.Hour)
		require.NoError(t, s.Sessions().CreateSession(ctx, first))

		second := newSession("sess-dup", time.Hour)
		second.Data.Username = "mallory"
		require.ErrorIs(t, s.Sessions().CreateSession(ctx, second), store.ErrAlreadyExists)

		got, err := s.Sessions().GetSession(ctx, "sess-dup")
		require.NoError(t, err)
		require.Equal(t, "carol", got.Data.Username)
	})

	t.Run("concurrent creates on one id admit exactly one", func(t *testing.T) {
		s := newStore(t)
		const workers = 16

		var (
			wg      sync.WaitGroup
			created atomic.Int32
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sess := newSession("contended", time.Hour)
				sess.Data.Username = fmt.Sprintf("user-%d", i)
				err := s.Sessions().CreateSession(ctx, sess)
				if err == nil {
					created.Add(1)
					return
				}
				if !errors.Is(err, store.ErrAlreadyExists) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), created.Load())
	})

	t.Run("touch", func(t *testing.T) {
		s := newStore(t)
		sess := newSession("sess-touch", time.Hour)
		require.NoError(t, s.Sessions().CreateSession(ctx, sess))

		seen := sess.LastSeenAt.Add(5 * time.Minute)
		require.NoError(t, s.Sessions().TouchSession(ctx, sess.ID, seen))

		got, err := s.Sessions().GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.WithinDuration(t, seen, got.LastSeenAt, time.Millisecond)
		require.Equal(t, sess.Data, got.Data)

		require.ErrorIs(t, s.Sessions().TouchSession(ctx, "missing", seen), store.ErrNotFound)
	})

	t.Run("touch after delete does not resurrect", func(t *testing.T) {
		s := newStore(t)
		sess := newSession("sess-gone", time.Hour)
		require.NoError(t, s.Sessions().CreateSession(ctx, sess))
		require.NoError(t, s.Sessions().DeleteSession(ctx, sess.ID))

		require.ErrorIs(t, s.Sessions().TouchSession(ctx, sess.ID, now()), store.ErrNotFound)
		_, err := s.Sessions().GetSession(ctx, sess.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	if !opts.NativeTTL {
		t.Run("delete expired", func(t *testing.T) {
			s := newStore(t)
			short := newSession("sess-short", time.Hour)
			long := newSession("sess-long", 3*time.Hour)
			require.NoError(t, s.Sessions().CreateSession(ctx, short))
			require.NoError(t, s.Sessions().CreateSession(ctx, long))

			n, err := s.Sessions().DeleteExpiredSessions(ctx, short.ExpiresAt.Add(time.Minute))
			require.NoError(t, err)
			require.Equal(t, int64(1), n)

			_, err = s.Sessions().GetSession(ctx, short.ID)
			require.ErrorIs(t, err, store.ErrNotFound)
			_, err = s.Sessions().GetSession(ctx, long.ID)
			require.NoError(t, err)
		})
	}
}
