package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInactiveUser       = errors.New("inactive_user")
)

// PasswordHasher is satisfied by *cryptox.Hasher.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) error

	// Matches reports whether encodedHash uses the scheme and cost that
	// HashPassword produces.
	Matches(encodedHash string) bool
}

// CredentialService checks username/password pairs against the credential
// store. Unknown users are verified against a decoy hash so that both
// failure paths pay for one full hash comparison.
type CredentialService struct {
	Store  store.UserStore
	hasher PasswordHasher
	decoy  string
}

// NewCredentialService hashes a random decoy secret with hasher's scheme
// and cost. The decoy never matches any password a client can send.
func NewCredentialService(st store.UserStore, hasher PasswordHasher) (*CredentialService, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate decoy secret: %w", err)
	}
	decoy, err := hasher.HashPassword(secret)
	if err != nil {
		return nil, fmt.Errorf("hash decoy secret: %w", err)
	}
	return &CredentialService{Store: st, hasher: hasher, decoy: decoy}, nil
}

// Authenticate returns the user when password matches. Unknown users and
// wrong passwords both yield ErrInvalidCredentials. ErrInactiveUser is only
// reported once the password has been verified, so it cannot be used to
// probe for disabled accounts.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_ = s.hasher.VerifyPassword(password, s.decoy)
		return domain.User{}, ErrInvalidCredentials
	case err != nil:
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.hasher.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			l.Error("stored password hash unusable",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
			// A broken hash fails fast; pay for a full comparison anyway.
			_ = s.hasher.VerifyPassword(password, s.decoy)
		}
		return domain.User{}, ErrInvalidCredentials
	}

	if user.Disabled {
		return user, ErrInactiveUser
	}
	return user, nil
}

// AuditHashes returns the usernames whose stored hash was not produced with
// the configured scheme and cost. Logins for those users take a different
// time than logins for unknown users until their hash is replaced.
func (s *CredentialService) AuditHashes(ctx context.Context) ([]string, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var stale []string
	for _, u := range users {
		if !s.hasher.Matches(u.PasswordHash) {
			stale = append(stale, u.Username)
		}
	}
	return stale, nil
}

// Identify resolves a username without a password check. It backs bearer
// and session gates, whose secret was verified upstream, and the trust login
// mode. Unknown users yield store.ErrNotFound.
func (s *CredentialService) Identify(ctx context.Context, username string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.Disabled {
		return user, ErrInactiveUser
	}
	return user, nil
}
