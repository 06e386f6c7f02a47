package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/aussiebroadwan/authgate/pkg/jwtx"
)

// AMRPassword marks tokens minted after a password check.
const AMRPassword = "pwd"

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Issuer   string
	Audience []string

	// TTL applies when Issue is called with a non-positive ttl. Zero means
	// jwtx.DefaultAccessTokenTTL.
	TTL time.Duration

	Leeway time.Duration

	// Now overrides the clock for both issuing and validating.
	Now func() time.Time
}

// IssuedToken is the result of a successful Issue.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	ExpiresAt   time.Time
}

// TokenService mints and validates HS256 bearer tokens with a single
// process-wide key. It holds no mutable state after construction.
type TokenService struct {
	signer   jwtx.Signer
	verifier jwtx.Verifier
	cfg      TokenConfig
}

func NewTokenService(key []byte, cfg TokenConfig) (*TokenService, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	signer, err := jwtx.NewSignerHS256(cryptox.KeyID(key), key)
	if err != nil {
		return nil, err
	}
	verifier, err := jwtx.NewVerifierHS256(key, jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
		Now:      cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	return &TokenService{signer: signer, verifier: verifier, cfg: cfg}, nil
}

// KID returns the key id stamped into every token header.
func (s *TokenService) KID() string { return s.signer.KID() }

// TTL returns the default token lifetime.
func (s *TokenService) TTL() time.Duration { return s.cfg.TTL }

// Issue signs a token for subject. A non-positive ttl uses the default.
func (s *TokenService) Issue(subject string, ttl time.Duration) (IssuedToken, error) {
	if subject == "" {
		return IssuedToken{}, errors.New("issue token: empty subject")
	}
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}

	now := s.cfg.Now()
	claims := jwtx.NewAccessClaims(subject, []string{AMRPassword}, ttl, s.cfg.Issuer, s.cfg.Audience, now)

	raw, err := s.signer.Sign(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return IssuedToken{
		AccessToken: raw,
		TokenType:   "bearer",
		ExpiresIn:   ttl,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Validate checks the signature, then expiry, then the subject. Rejections
// wrap jwtx.ErrTampered, jwtx.ErrExpired or jwtx.ErrMalformed.
func (s *TokenService) Validate(raw string) (jwtx.Claims, error) {
	return s.verifier.Verify(raw)
}
