package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testPepper = []byte("service-test-pepper-0123456789ab")

// bcryptCost12Hash is a well-formed bcrypt hash at cost 12. Tests only use it
// where no verification runs against it.
const bcryptCost12Hash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// fakeClock is a settable clock shared between a service and its test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newBcryptHasher(t *testing.T) *cryptox.Hasher {
	t.Helper()
	h, err := cryptox.NewHasher(cryptox.SchemeBcrypt, bcrypt.MinCost, testPepper)
	require.NoError(t, err)
	return h
}
