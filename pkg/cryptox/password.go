package cryptox

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Scheme names a password hashing algorithm.
type Scheme string

const (
	SchemeArgon2id Scheme = "argon2id"
	SchemeBcrypt   Scheme = "bcrypt"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

var (
	// ErrMismatch is returned when a password does not match its hash.
	ErrMismatch = errors.New("cryptox: password does not match")

	// ErrUnsupportedHash is returned for hashes in an unknown or broken format.
	ErrUnsupportedHash = errors.New("cryptox: unsupported hash format")
)

// Hasher hashes and verifies passwords with a server-side pepper. A Hasher
// is immutable after construction and safe for concurrent use.
type Hasher struct {
	scheme     Scheme
	bcryptCost int
	pepper     []byte
}

// NewHasher returns a Hasher producing hashes in the given scheme. Verification
// accepts any supported scheme regardless of the one configured for hashing.
// A bcryptCost of zero selects bcrypt.DefaultCost.
func NewHasher(scheme Scheme, bcryptCost int, pepper []byte) (*Hasher, error) {
	switch scheme {
	case SchemeArgon2id, "":
		scheme = SchemeArgon2id
	case SchemeBcrypt:
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("cryptox: bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	default:
		return nil, fmt.Errorf("cryptox: unknown password scheme %q", scheme)
	}

	return &Hasher{
		scheme:     scheme,
		bcryptCost: bcryptCost,
		pepper:     append([]byte(nil), pepper...),
	}, nil
}

// Scheme reports the scheme used by HashPassword.
func (h *Hasher) Scheme() Scheme { return h.scheme }

// HashPassword hashes password with the configured scheme.
func (h *Hasher) HashPassword(password string) (string, error) {
	switch h.scheme {
	case SchemeBcrypt:
		out, err := bcrypt.GenerateFromPassword(h.prehash(password), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("cryptox: bcrypt: %w", err)
		}
		return string(out), nil
	default:
		return h.hashArgon2id(password)
	}
}

// VerifyPassword compares password against encodedHash. It returns nil on a
// match, ErrMismatch on a wrong password and ErrUnsupportedHash (wrapped) when
// the hash cannot be parsed.
func (h *Hasher) VerifyPassword(password, encodedHash string) error {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return h.verifyArgon2id(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), h.prehash(password))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrMismatch
		default:
			return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
		}
	default:
		return ErrUnsupportedHash
	}
}

// Matches reports whether encodedHash was produced with this Hasher's scheme
// and cost parameters. Verifying a hash that does not match costs a different
// amount of time than verifying one produced by HashPassword.
func (h *Hasher) Matches(encodedHash string) bool {
	switch h.scheme {
	case SchemeBcrypt:
		if !isBcrypt(encodedHash) {
			return false
		}
		cost, err := bcrypt.Cost([]byte(encodedHash))
		return err == nil && cost == h.bcryptCost
	default:
		parts := strings.Split(encodedHash, "$")
		if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
			return false
		}
		var mem, iters uint32
		var par uint8
		if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
			return false
		}
		return mem == memory && iters == iterations && par == parallelism
	}
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// hashArgon2id generates a PHC-format Argon2id hash string including salt and parameters.
func (h *Hasher) hashArgon2id(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey(
		h.peppered(password),
		salt,
		iterations,
		memory,
		parallelism,
		keyLength,
	)
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		b64Salt,
		b64Hash,
	), nil
}

func (h *Hasher) verifyArgon2id(password, encodedHash string) error {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return fmt.Errorf("%w: expected 6 parts", ErrUnsupportedHash)
	}
	if parts[2] != "v=19" {
		return fmt.Errorf("%w: wrong version", ErrUnsupportedHash)
	}

	var mem, iters uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrUnsupportedHash, err)
	}
	if iters == 0 || par == 0 {
		return fmt.Errorf("%w: zero cost parameter", ErrUnsupportedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: salt: %v", ErrUnsupportedHash, err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return fmt.Errorf("%w: hash: %v", ErrUnsupportedHash, err)
	}

	computed := argon2.IDKey(
		h.peppered(password),
		salt,
		iters,
		mem,
		par,
		uint32(len(expected)), // #nosec G115 - bounded by the decoded hash
	)

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}
	return ErrMismatch
}

func (h *Hasher) peppered(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}

// prehash folds the pepper in with HMAC-SHA256 so the bcrypt input stays
// under its 72-byte limit for any password length.
func (h *Hasher) prehash(password string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(password))
	sum := mac.Sum(nil)

	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum)
	return out
}

// GeneratePassword returns a random 12 character alphanumeric password.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 12
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = charset[n.Int64()]
	}
	return string(password), nil
}
