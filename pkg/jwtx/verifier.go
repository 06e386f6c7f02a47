package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Rejection classes. Callers dispatch with errors.Is; the wrapped parser
// error is kept for logs.
var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrTampered    = errors.New("jwtx: signature verification failed")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
)

// HS256Verifier validates JWTs signed using HS256.
type HS256Verifier struct {
	key  []byte
	opts VerifyOptions
}

// NewVerifierHS256 creates a verifier for tokens signed with key.
func NewVerifierHS256(key []byte, opts VerifyOptions) (*HS256Verifier, error) {
	if len(key) < MinHMACKeySize {
		return nil, fmt.Errorf("jwtx: HS256 key must be at least %d bytes, got %d", MinHMACKeySize, len(key))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &HS256Verifier{key: append([]byte(nil), key...), opts: opts}, nil
}

// Verify checks the signature before any claim is trusted, then expiry,
// then the remaining registered claims and a non-empty subject.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.opts.Now),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithLeeway(v.opts.Leeway),
	}
	if v.opts.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(v.opts.Issuer))
	}
	parser := jwt.NewParser(popts...)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("jwtx: unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return Claims{}, classify(tokenStr, err)
	}

	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateSubject(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}

func classify(tokenStr string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTampered, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		// A token whose header and claims decode but whose signature segment
		// does not is a damaged signature, not garbage input.
		if _, _, uerr := jwt.NewParser().ParseUnverified(tokenStr, &Claims{}); uerr == nil {
			return fmt.Errorf("%w: %v", ErrTampered, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrIssuer, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
