package gate

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
)

// Principal is a verified identity. Only this package constructs non-zero
// values, and only after verification succeeds.
type Principal struct {
	username string
	fullName string
	method   domain.Mechanism
	subject  string
	issuedAt time.Time
}

func (p Principal) Username() string         { return p.username }
func (p Principal) FullName() string         { return p.fullName }
func (p Principal) Method() domain.Mechanism { return p.method }

// Subject is the token subject for bearer principals and the username
// otherwise.
func (p Principal) Subject() string { return p.subject }

// IssuedAt is when the token or session backing the principal was created.
// It is zero for Basic principals.
func (p Principal) IssuedAt() time.Time { return p.issuedAt }

func (p Principal) IsZero() bool { return p.username == "" }

type ctxKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by Require.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && !p.IsZero()
}
