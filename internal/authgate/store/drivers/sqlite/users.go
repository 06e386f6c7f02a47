package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
)

type usersRepo struct {
	q dbtx
}

const getUserByUsername = `
SELECT id, username, full_name, password_hash, disabled, created_at, updated_at
FROM users
WHERE username = ?`

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var (
		u                domain.User
		created, updated int64
	)
	err := r.q.QueryRowContext(ctx, getUserByUsername, username).Scan(
		&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Disabled, &created, &updated,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

const createUser = `
INSERT INTO users (id, username, full_name, password_hash, disabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, createUser,
		u.ID, u.Username, u.FullName, u.PasswordHash, u.Disabled,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConflict(err)
}

const setDisabled = `UPDATE users SET disabled = ?, updated_at = ? WHERE username = ?`

func (r *usersRepo) SetDisabled(ctx context.Context, username string, disabled bool) error {
	res, err := r.q.ExecContext(ctx, setDisabled, disabled, toMillis(time.Now()), username)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var empty bool
	err := r.q.QueryRowContext(ctx, `SELECT NOT EXISTS (SELECT 1 FROM users)`).Scan(&empty)
	return empty, err
}

const listUsers = `
SELECT id, username, full_name, password_hash, disabled, created_at, updated_at
FROM users
ORDER BY username`

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var (
			u                domain.User
			created, updated int64
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Disabled, &created, &updated); err != nil {
			return nil, err
		}
		u.CreatedAt = fromMillis(created)
		u.UpdatedAt = fromMillis(updated)
		users = append(users, u)
	}
	return users, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
