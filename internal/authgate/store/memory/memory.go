// Package memory is an in-process store used for development and tests.
// Users and sessions live in maps, each guarded by its own RWMutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
)

type Store struct {
	usersMu sync.RWMutex
	users   map[string]domain.User // keyed by username
	userIDs map[string]struct{}

	mu       sync.RWMutex
	sessions map[string]domain.Session
}

var (
	_ store.UserStore    = (*Store)(nil)
	_ store.SessionStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		userIDs:  make(map[string]struct{}),
		sessions: make(map[string]domain.Session),
	}
}

func (s *Store) ApplyMigrations(context.Context) error { return nil }
func (s *Store) Close() error                          { return nil }
func (s *Store) Ping(context.Context) error            { return nil }

func (s *Store) Users() store.Users       { return usersRepo{s: s} }
func (s *Store) Sessions() store.Sessions { return sessionsRepo{s: s} }

// WithTx holds the user write lock for the whole of fn, so every other user
// read or write waits for the transaction to finish. When fn fails the user
// table is restored from a snapshot taken on entry. fn must only use the
// Users it is given; calling s.Users() from inside fn deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(store.Users) error) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users := make(map[string]domain.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	ids := make(map[string]struct{}, len(s.userIDs))
	for k := range s.userIDs {
		ids[k] = struct{}{}
	}

	if err := fn(usersRepo{s: s, held: true}); err != nil {
		s.users, s.userIDs = users, ids
		return err
	}
	return nil
}

// usersRepo takes usersMu per call unless held is set, in which case the
// enclosing transaction already owns the write lock.
type usersRepo struct {
	s    *Store
	held bool
}

func (r usersRepo) rlock() func() {
	if r.held {
		return func() {}
	}
	r.s.usersMu.RLock()
	return r.s.usersMu.RUnlock
}

func (r usersRepo) lock() func() {
	if r.held {
		return func() {}
	}
	r.s.usersMu.Lock()
	return r.s.usersMu.Unlock
}

func (r usersRepo) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	defer r.rlock()()

	u, ok := r.s.users[username]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r usersRepo) CreateUser(_ context.Context, u domain.User) error {
	defer r.lock()()

	if _, ok := r.s.users[u.Username]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := r.s.userIDs[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.s.users[u.Username] = u
	r.s.userIDs[u.ID] = struct{}{}
	return nil
}

func (r usersRepo) SetDisabled(_ context.Context, username string, disabled bool) error {
	defer r.lock()()

	u, ok := r.s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Disabled = disabled
	u.UpdatedAt = time.Now().UTC()
	r.s.users[username] = u
	return nil
}

func (r usersRepo) IsEmpty(context.Context) (bool, error) {
	defer r.rlock()()
	return len(r.s.users) == 0, nil
}

func (r usersRepo) ListUsers(context.Context) ([]domain.User, error) {
	defer r.rlock()()

	users := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type sessionsRepo struct{ s *Store }

func (r sessionsRepo) CreateSession(_ context.Context, sess domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[sess.ID]; ok {
		return store.ErrAlreadyExists
	}
	r.s.sessions[sess.ID] = sess
	return nil
}

func (r sessionsRepo) GetSession(_ context.Context, id string) (domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (r sessionsRepo) TouchSession(_ context.Context, id string, seen time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.LastSeenAt = seen
	r.s.sessions[id] = sess
	return nil
}

func (r sessionsRepo) DeleteSession(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, id)
	return nil
}

func (r sessionsRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}
