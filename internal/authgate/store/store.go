package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Backend is the lifecycle shared by every driver.
type Backend interface {
	ApplyMigrations(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing connection is still alive.
	Ping(ctx context.Context) error
}

// UserStore holds credential records. Drivers: sqlite, postgres, memory.
type UserStore interface {
	Backend
	Users() Users

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Users) error) error
}

// SessionStore holds session records. Drivers: memory, sqlite, postgres, redis.
type SessionStore interface {
	Backend
	Sessions() Sessions
}

type Users interface {
	// GetUserByUsername is a single keyed lookup; missing users cost the
	// same round trip as present ones.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the id or username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SetDisabled flips the disabled flag and bumps updated_at.
	SetDisabled(ctx context.Context, username string, disabled bool) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)

	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Sessions interface {
	// CreateSession inserts a record, failing with ErrAlreadyExists rather
	// than overwriting an existing id.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns the record as stored, live or not.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// TouchSession updates last_seen_at. It never recreates a deleted record.
	TouchSession(ctx context.Context, id string, seen time.Time) error

	// DeleteSession removes the record. Deleting a missing id is not an error.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions purges records whose expires_at is at or before
	// now and reports how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
