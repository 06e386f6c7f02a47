package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
)

type sessionsRepo struct {
	q dbtx
}

const createSession = `
INSERT INTO sessions (id, username, full_name, login_mode, created_at, last_seen_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.Exec(ctx, createSession,
		s.ID, s.Data.Username, s.Data.FullName, string(s.Data.LoginMode),
		s.CreatedAt, s.LastSeenAt, s.ExpiresAt,
	)
	return mapConflict(err)
}

const getSession = `
SELECT id, username, full_name, login_mode, created_at, last_seen_at, expires_at
FROM sessions
WHERE id = $1`

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var (
		s    domain.Session
		mode string
	)
	err := r.q.QueryRow(ctx, getSession, id).Scan(
		&s.ID, &s.Data.Username, &s.Data.FullName, &mode, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Data.LoginMode = domain.LoginMode(mode)
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastSeenAt = s.LastSeenAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	return s, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, seen time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE sessions SET last_seen_at = $1 WHERE id = $2`, seen, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
