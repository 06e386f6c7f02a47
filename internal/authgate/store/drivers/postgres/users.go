package postgres

import (
	"context"
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
WHERE username = $1`

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, getUserByUsername, username).Scan(
		&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Disabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

const createUser = `
INSERT INTO users (id, username, full_name, password_hash, disabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.Exec(ctx, createUser,
		u.ID, u.Username, u.FullName, u.PasswordHash, u.Disabled, u.CreatedAt, u.UpdatedAt,
	)
	return mapConflict(err)
}

func (r *usersRepo) SetDisabled(ctx context.Context, username string, disabled bool) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET disabled = $1, updated_at = $2 WHERE username = $3`,
		disabled, time.Now().UTC(), username,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var empty bool
	err := r.q.QueryRow(ctx, `SELECT NOT EXISTS (SELECT 1 FROM users)`).Scan(&empty)
	return empty, err
}

const listUsers = `
SELECT id, username, full_name, password_hash, disabled, created_at, updated_at
FROM users
ORDER BY username`

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Disabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		u.UpdatedAt = u.UpdatedAt.UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}
