package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/idx"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
	"gopkg.in/yaml.v3"
)

var (
	ErrSeedInvalid      = errors.New("invalid seed file")
	ErrSeedFailedCreate = errors.New("failed to create seed user")
)

// SeedFile is the YAML document applied to an empty credential store.
//
//	users:
//	  - username: alice
//	    full_name: Alice Wonderson
//	    password: wonderland
//	  - username: mallory
//	    password_hash: $argon2id$v=19$...
//	    disabled: true
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	Username     string `yaml:"username"`
	FullName     string `yaml:"full_name"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Disabled     bool   `yaml:"disabled"`
}

// LoadSeedFile reads and validates a seed file from path.
func LoadSeedFile(path string) (SeedFile, error) {
	f, err := os.Open(path) // #nosec G304 - operator supplied path
	if err != nil {
		return SeedFile{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a seed document, rejecting unknown fields.
func ParseSeed(r io.Reader) (SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return SeedFile{}, fmt.Errorf("%w: %v", ErrSeedInvalid, err)
	}
	if err := sf.Validate(); err != nil {
		return SeedFile{}, err
	}
	return sf, nil
}

// Validate requires unique non-empty usernames and exactly one of password
// or password_hash per entry.
func (sf SeedFile) Validate() error {
	seen := make(map[string]bool, len(sf.Users))
	for i, u := range sf.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return fmt.Errorf("%w: users[%d]: username is required", ErrSeedInvalid, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: users[%d]: duplicate username %q", ErrSeedInvalid, i, name)
		}
		seen[name] = true

		if (u.Password == "") == (u.PasswordHash == "") {
			return fmt.Errorf("%w: users[%d]: exactly one of password or password_hash is required", ErrSeedInvalid, i)
		}
	}
	return nil
}

// SeedService populates an empty credential store.
type SeedService struct {
	Store  store.UserStore
	Hasher PasswordHasher
}

// Apply creates every user in sf when the store holds no users, all in one
// transaction. It returns the number of users created; a populated store is
// left alone and reports zero. A password_hash produced with a different
// scheme or cost than Hasher is rejected with ErrSeedInvalid.
func (s *SeedService) Apply(ctx context.Context, sf SeedFile) (int, error) {
	l := slogx.FromContext(ctx)

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return 0, fmt.Errorf("check user store: %w", err)
	}
	if !empty {
		l.Info("credential store already populated, skipping seed")
		return 0, nil
	}

	for i, su := range sf.Users {
		if su.PasswordHash != "" && !s.Hasher.Matches(su.PasswordHash) {
			return 0, fmt.Errorf("%w: users[%d]: password_hash for %q does not match the configured password scheme and cost",
				ErrSeedInvalid, i, strings.TrimSpace(su.Username))
		}
	}

	// Hash outside the transaction; it is the slow part.
	now := time.Now().UTC()
	users := make([]domain.User, 0, len(sf.Users))
	for _, su := range sf.Users {
		hash := su.PasswordHash
		if hash == "" {
			hash, err = s.Hasher.HashPassword(su.Password)
			if err != nil {
				l.Error("failed to hash seed password",
					slog.String("username", su.Username),
					slog.Any("error", err),
				)
				return 0, ErrSeedFailedCreate
			}
		}
		users = append(users, domain.User{
			ID:           idx.NewAt(now).String(),
			Username:     strings.TrimSpace(su.Username),
			FullName:     su.FullName,
			PasswordHash: hash,
			Disabled:     su.Disabled,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	err = s.Store.WithTx(ctx, func(tx store.Users) error {
		for _, u := range users {
			if err := tx.CreateUser(ctx, u); err != nil {
				l.Error("failed to create seed user",
					slog.String("username", u.Username),
					slog.Any("error", err),
				)
				return fmt.Errorf("%w: %s: %w", ErrSeedFailedCreate, u.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.Info("seeded credential store", slog.Int("users", len(users)))
	return len(users), nil
}
