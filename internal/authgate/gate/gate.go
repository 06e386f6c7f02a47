// Package gate turns a request's Basic credentials, bearer token or session
// cookie into a Principal, or into a *Rejection describing why not.
package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/aussiebroadwan/authgate/pkg/jwtx"
)

const (
	challengeBasic  = "Basic"
	challengeBearer = "Bearer"
)

// Gate authenticates a request. The error, when non-nil, is a *Rejection.
type Gate interface {
	Authenticate(r *http.Request) (Principal, error)
}

// Credentials is satisfied by *service.CredentialService.
type Credentials interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
	Identify(ctx context.Context, username string) (domain.User, error)
}

// Tokens is satisfied by *service.TokenService.
type Tokens interface {
	Validate(raw string) (jwtx.Claims, error)
}

// Sessions is satisfied by *service.SessionManager.
type Sessions interface {
	FromRequest(r *http.Request) (string, error)
	Read(ctx context.Context, id string) (domain.Session, error)
}

// Basic verifies the Authorization: Basic header on every request.
type Basic struct {
	Credentials Credentials
}

func (g Basic) Authenticate(r *http.Request) (Principal, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return Principal{}, unauthorized(challengeBasic, DetailBadCredentials, "missing basic credentials", nil)
	}

	user, err := g.Credentials.Authenticate(r.Context(), username, password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return Principal{}, unauthorized(challengeBasic, DetailBadCredentials, "invalid credentials", err)
	case errors.Is(err, service.ErrInactiveUser):
		// Basic has no session to end; a disabled account is just bad
		// credentials to the client.
		return Principal{}, unauthorized(challengeBasic, DetailBadCredentials, "inactive user", err)
	case err != nil:
		return Principal{}, internal("credential check failed", err)
	}

	return Principal{
		username: user.Username,
		fullName: user.FullName,
		method:   domain.MechanismBasic,
		subject:  user.Username,
	}, nil
}

// Bearer verifies an Authorization: Bearer token and that its subject is
// still an active user.
type Bearer struct {
	Tokens      Tokens
	Credentials Credentials
}

func (g Bearer) Authenticate(r *http.Request) (Principal, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return Principal{}, unauthorized(challengeBearer, DetailNotAuth, "missing bearer token", nil)
	}

	claims, err := g.Tokens.Validate(raw)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return Principal{}, unauthorized(challengeBearer, DetailTokenExpired, "token expired", err)
	case errors.Is(err, jwtx.ErrTampered):
		return Principal{}, unauthorized(challengeBearer, DetailInvalidToken, "token signature invalid", err)
	case err != nil:
		return Principal{}, unauthorized(challengeBearer, DetailInvalidToken, "token rejected", err)
	}

	user, err := g.Credentials.Identify(r.Context(), claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Principal{}, unauthorized(challengeBearer, DetailUserNotFound, "token subject unknown", err)
	case errors.Is(err, service.ErrInactiveUser):
		return Principal{}, forbidden(DetailInactiveUser, "inactive user", err)
	case err != nil:
		return Principal{}, internal("user lookup failed", err)
	}

	p := Principal{
		username: user.Username,
		fullName: user.FullName,
		method:   domain.MechanismBearer,
		subject:  claims.Subject,
	}
	if claims.IssuedAt != nil {
		p.issuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Session verifies the signed session cookie and the record it refers to.
type Session struct {
	Sessions    Sessions
	Credentials Credentials
}

func (g Session) Authenticate(r *http.Request) (Principal, error) {
	id, err := g.Sessions.FromRequest(r)
	switch {
	case errors.Is(err, cookiex.ErrNoCookie):
		return Principal{}, unauthorized("", DetailNotAuth, "missing session cookie", nil)
	case err != nil:
		return Principal{}, unauthorized("", DetailBadSession, "session cookie rejected", err)
	}

	sess, err := g.Sessions.Read(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Principal{}, unauthorized("", DetailBadSession, "session not found or expired", err)
	case err != nil:
		return Principal{}, internal("session lookup failed", err)
	}

	user, err := g.Credentials.Identify(r.Context(), sess.Data.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Principal{}, unauthorized("", DetailBadSession, "session user unknown", err)
	case errors.Is(err, service.ErrInactiveUser):
		return Principal{}, forbidden(DetailInactiveUser, "inactive user", err)
	case err != nil:
		return Principal{}, internal("user lookup failed", err)
	}

	return Principal{
		username: user.Username,
		fullName: user.FullName,
		method:   domain.MechanismSession,
		subject:  user.Username,
		issuedAt: sess.CreatedAt,
	}, nil
}

type anyGate struct {
	bearer  Gate
	session Gate
}

// Any uses bearer when the request has an Authorization header and session
// otherwise.
func Any(bearer, session Gate) Gate {
	return anyGate{bearer: bearer, session: session}
}

func (g anyGate) Authenticate(r *http.Request) (Principal, error) {
	if r.Header.Get("Authorization") != "" {
		return g.bearer.Authenticate(r)
	}
	return g.session.Authenticate(r)
}
