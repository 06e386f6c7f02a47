package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSecretTooShort is returned when a loaded secret has fewer bytes than required.
var ErrSecretTooShort = errors.New("cryptox: secret too short")

// DecodeSecret decodes a base64url (padded or not) secret and enforces a
// minimum length in bytes.
func DecodeSecret(encoded string, minSize int) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("cryptox: decode secret: %w", err)
	}
	if len(raw) < minSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrSecretTooShort, len(raw), minSize)
	}
	return raw, nil
}

// LoadOrGenerateSecret reads a base64url secret from path. When the file does
// not exist a new random secret of size bytes is generated and written with
// 0600 permissions, creating parent directories as needed.
func LoadOrGenerateSecret(path string, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cryptox: secret size must be positive, got %d", size)
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("cryptox: create secret dir: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return DecodeSecret(string(data), size)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read secret: %w", err)
	}

	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("cryptox: generate secret: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("cryptox: write secret: %w", err)
	}
	return secret, nil
}
