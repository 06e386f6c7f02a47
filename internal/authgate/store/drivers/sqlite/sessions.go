package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
)

type sessionsRepo struct {
	q dbtx
}

const createSession = `
INSERT INTO sessions (id, username, full_name, login_mode, created_at, last_seen_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, createSession,
		s.ID, s.Data.Username, s.Data.FullName, string(s.Data.LoginMode),
		toMillis(s.CreatedAt), toMillis(s.LastSeenAt), toMillis(s.ExpiresAt),
	)
	return mapConflict(err)
}

const getSession = `
SELECT id, username, full_name, login_mode, created_at, last_seen_at, expires_at
FROM sessions
WHERE id = ?`

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var (
		s                      domain.Session
		mode                   string
		created, seen, expires int64
	)
	err := r.q.QueryRowContext(ctx, getSession, id).Scan(
		&s.ID, &s.Data.Username, &s.Data.FullName, &mode, &created, &seen, &expires,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Data.LoginMode = domain.LoginMode(mode)
	s.CreatedAt = fromMillis(created)
	s.LastSeenAt = fromMillis(seen)
	s.ExpiresAt = fromMillis(expires)
	return s, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, seen time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE sessions SET last_seen_at = ? WHERE id = ?`, toMillis(seen), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
