package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testPepper = []byte("0123456789abcdef0123456789abcdef")

func newTestHasher(t *testing.T, scheme Scheme) *Hasher {
	t.Helper()
	h, err := NewHasher(scheme, bcrypt.MinCost, testPepper)
	require.NoError(t, err)
	return h
}

func TestNewHasher(t *testing.T) {
	h, err := NewHasher("", 0, nil)
	require.NoError(t, err)
	require.Equal(t, SchemeArgon2id, h.Scheme())

	h, err = NewHasher(SchemeBcrypt, 0, nil)
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, h.bcryptCost)

	_, err = NewHasher(SchemeBcrypt, 99, nil)
	require.Error(t, err)

	_, err = NewHasher("scrypt", 0, nil)
	require.Error(t, err)
}

func TestHashPassword_Argon2idFormat(t *testing.T) {
	h := newTestHasher(t, SchemeArgon2id)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.HashPassword(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			require.NoError(t, h.VerifyPassword(tt.password, hash))
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	for _, scheme := range []Scheme{SchemeArgon2id, SchemeBcrypt} {
		t.Run(string(scheme), func(t *testing.T) {
			h := newTestHasher(t, scheme)

			hash1, err := h.HashPassword("samepassword")
			require.NoError(t, err)
			hash2, err := h.HashPassword("samepassword")
			require.NoError(t, err)

			require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
			require.NoError(t, h.VerifyPassword("samepassword", hash1))
			require.NoError(t, h.VerifyPassword("samepassword", hash2))
		})
	}
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	for _, scheme := range []Scheme{SchemeArgon2id, SchemeBcrypt} {
		t.Run(string(scheme), func(t *testing.T) {
			h := newTestHasher(t, scheme)
			hash, err := h.HashPassword("correct-password")
			require.NoError(t, err)

			for _, wrong := range []string{
				"wrong-password",
				"Correct-Password",
				"correct-password ",
				"",
				"correct-passwor",
				strings.Repeat("x", 10000),
			} {
				require.ErrorIs(t, h.VerifyPassword(wrong, hash), ErrMismatch, "password %q", wrong)
			}
		})
	}
}

func TestVerifyPassword_CrossScheme(t *testing.T) {
	argon := newTestHasher(t, SchemeArgon2id)
	bc := newTestHasher(t, SchemeBcrypt)

	argonHash, err := argon.HashPassword("wonderland")
	require.NoError(t, err)
	bcryptHash, err := bc.HashPassword("wonderland")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(bcryptHash, "$2a$"))

	// Either hasher verifies hashes produced by the other scheme.
	require.NoError(t, bc.VerifyPassword("wonderland", argonHash))
	require.NoError(t, argon.VerifyPassword("wonderland", bcryptHash))
}

func TestVerifyPassword_BcryptLongPasswords(t *testing.T) {
	h := newTestHasher(t, SchemeBcrypt)

	base := strings.Repeat("a", 80)
	hash, err := h.HashPassword(base + "1")
	require.NoError(t, err)

	// Plain bcrypt would ignore everything past byte 72.
	require.NoError(t, h.VerifyPassword(base+"1", hash))
	require.ErrorIs(t, h.VerifyPassword(base+"2", hash), ErrMismatch)
}

func TestVerifyPassword_PepperMatters(t *testing.T) {
	for _, scheme := range []Scheme{SchemeArgon2id, SchemeBcrypt} {
		t.Run(string(scheme), func(t *testing.T) {
			h := newTestHasher(t, scheme)
			other, err := NewHasher(scheme, bcrypt.MinCost, []byte("a-different-pepper-value-entirely"))
			require.NoError(t, err)

			hash, err := h.HashPassword("secret-password")
			require.NoError(t, err)
			require.ErrorIs(t, other.VerifyPassword("secret-password", hash), ErrMismatch)
		})
	}
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	h := newTestHasher(t, SchemeArgon2id)

	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$scrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"zero iterations", "$argon2id$v=19$m=19456,t=0,p=1$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing version", "$argon2id$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"truncated bcrypt", "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.VerifyPassword("test-password", tt.invalidHash)
			require.ErrorIs(t, err, ErrUnsupportedHash)
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool, 50)
	for range 50 {
		password, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, password, 12)
		require.NotContains(t, seen, password, "duplicate password generated")
		seen[password] = true

		for _, char := range password {
			valid := (char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9')
			require.True(t, valid, "password should only contain alphanumeric characters")
		}
	}
}

func TestMatches(t *testing.T) {
	argon := newTestHasher(t, SchemeArgon2id)
	bc := newTestHasher(t, SchemeBcrypt)
	bc12, err := NewHasher(SchemeBcrypt, 12, testPepper)
	require.NoError(t, err)

	argonHash, err := argon.HashPassword("wonderland")
	require.NoError(t, err)
	bcryptHash, err := bc.HashPassword("wonderland")
	require.NoError(t, err)
	const bcrypt12 = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

	tests := []struct {
		name string
		h    *Hasher
		hash string
		want bool
	}{
		{"argon2id own hash", argon, argonHash, true},
		{"argon2id rejects bcrypt", argon, bcrypt12, false},
		{"argon2id rejects other memory", argon, "$argon2id$v=19$m=65536,t=2,p=1$c2FsdA$aGFzaA", false},
		{"argon2id rejects other iterations", argon, "$argon2id$v=19$m=19456,t=3,p=1$c2FsdA$aGFzaA", false},
		{"argon2id rejects other parallelism", argon, "$argon2id$v=19$m=19456,t=2,p=4$c2FsdA$aGFzaA", false},
		{"argon2id rejects garbage", argon, "not-a-hash", false},
		{"bcrypt own hash", bc, bcryptHash, true},
		{"bcrypt rejects other cost", bc, bcrypt12, false},
		{"bcrypt rejects argon2id", bc, argonHash, false},
		{"bcrypt cost 12", bc12, bcrypt12, true},
		{"bcrypt rejects truncated", bc12, "$2a$12$short", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.h.Matches(tt.hash))
		})
	}
}
