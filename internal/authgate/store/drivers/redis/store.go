// Package redis stores sessions in Redis with native key expiry. It does
// not implement store.UserStore.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "authgate:session:"

type Store struct {
	rdb    *goredis.Client
	prefix string
}

var _ store.SessionStore = (*Store)(nil)

// NewStore connects using a redis:// or rediss:// URL and pings the server.
func NewStore(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Store{rdb: rdb, prefix: DefaultPrefix}, nil
}

// ApplyMigrations is a no-op; redis is schemaless.
func (s *Store) ApplyMigrations(context.Context) error { return nil }

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{s: s} }

type sessionsRepo struct {
	s *Store
}

type record struct {
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	LoginMode  string    `json:"login_mode"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toRecord(s domain.Session) record {
	return record{
		Username:   s.Data.Username,
		FullName:   s.Data.FullName,
		LoginMode:  string(s.Data.LoginMode),
		CreatedAt:  s.CreatedAt.UTC(),
		LastSeenAt: s.LastSeenAt.UTC(),
		ExpiresAt:  s.ExpiresAt.UTC(),
	}
}

func (r record) session(id string) domain.Session {
	return domain.Session{
		ID: id,
		Data: domain.SessionData{
			Username:  r.Username,
			FullName:  r.FullName,
			LoginMode: domain.LoginMode(r.LoginMode),
		},
		CreatedAt:  r.CreatedAt,
		LastSeenAt: r.LastSeenAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func (r *sessionsRepo) key(id string) string { return r.s.prefix + id }

// CreateSession uses SET NX so an existing key is never overwritten. The
// key expires with the session's absolute lifetime.
func (r *sessionsRepo) CreateSession(ctx context.Context, sess domain.Session) error {
	payload, err := json.Marshal(toRecord(sess))
	if err != nil {
		return err
	}

	ok, err := r.s.rdb.SetNX(ctx, r.key(sess.ID), payload, sessionTTL(sess)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// sessionTTL measures the lifetime on the clock that stamped the record, not
// the wall clock. A zero TTL would mean "never expire" to redis.
func sessionTTL(sess domain.Session) time.Duration {
	if sess.CreatedAt.IsZero() {
		return max(time.Until(sess.ExpiresAt), time.Millisecond)
	}
	return max(sess.ExpiresAt.Sub(sess.CreatedAt), time.Millisecond)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	rec, err := r.get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	return rec.session(id), nil
}

func (r *sessionsRepo) get(ctx context.Context, id string) (record, error) {
	raw, err := r.s.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return record{}, store.ErrNotFound
	}
	if err != nil {
		return record{}, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("redis: decode session: %w", err)
	}
	return rec, nil
}

// TouchSession rewrites the record with SET XX KEEPTTL: a key deleted
// between the read and the write stays deleted.
func (r *sessionsRepo) TouchSession(ctx context.Context, id string, seen time.Time) error {
	rec, err := r.get(ctx, id)
	if err != nil {
		return err
	}
	rec.LastSeenAt = seen.UTC()

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = r.s.rdb.SetArgs(ctx, r.key(id), payload, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return store.ErrNotFound
	}
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	return r.s.rdb.Del(ctx, r.key(id)).Err()
}

// DeleteExpiredSessions reports zero: redis expires keys itself.
func (r *sessionsRepo) DeleteExpiredSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}
