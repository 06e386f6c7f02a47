package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authgate/pkg/cryptox"
)

// Secret sizes in bytes.
const (
	tokenKeySize    = 32
	cookieHashSize  = 64
	cookieBlockSize = 32
	pepperSize      = 32
)

type secrets struct {
	tokenKey    []byte
	cookieHash  []byte
	cookieBlock []byte
	pepper      []byte
}

// loadSecrets resolves every process secret. An env value takes precedence
// over its file; a missing file is generated so restarts keep issued
// tokens, cookies and password hashes valid.
func loadSecrets(cfg Config, logger *slog.Logger) (secrets, error) {
	var (
		s   secrets
		err error
	)

	load := func(name, value, path string, size int) ([]byte, error) {
		if value != "" {
			logger.Info("secret loaded from environment", "secret", name)
			return cryptox.DecodeSecret(value, size)
		}
		b, err := cryptox.LoadOrGenerateSecret(path, size)
		if err != nil {
			return nil, err
		}
		logger.Info("secret loaded from file", "secret", name, "path", path)
		return b, nil
	}

	if s.tokenKey, err = load("token_key", cfg.TokenKey, cfg.TokenKeyFile, tokenKeySize); err != nil {
		return secrets{}, fmt.Errorf("token key: %w", err)
	}
	if s.cookieHash, err = load("cookie_hash_key", cfg.CookieHashKey, cfg.CookieHashKeyFile, cookieHashSize); err != nil {
		return secrets{}, fmt.Errorf("cookie hash key: %w", err)
	}
	if s.cookieBlock, err = load("cookie_block_key", cfg.CookieBlockKey, cfg.CookieBlockKeyFile, cookieBlockSize); err != nil {
		return secrets{}, fmt.Errorf("cookie block key: %w", err)
	}
	// AES wants exactly 16, 24 or 32 bytes.
	s.cookieBlock = s.cookieBlock[:cookieBlockSize]
	if s.pepper, err = load("pepper", cfg.Pepper, cfg.PepperFile, pepperSize); err != nil {
		return secrets{}, fmt.Errorf("pepper: %w", err)
	}

	logger.Info("token signing key ready", "kid", cryptox.KeyID(s.tokenKey))
	return s, nil
}
