package domain

import "time"

// Mechanism names how a principal authenticated.
type Mechanism string

const (
	MechanismBasic   Mechanism = "basic"
	MechanismBearer  Mechanism = "bearer"
	MechanismSession Mechanism = "session"
)

// LoginMode records how a session was established.
type LoginMode string

const (
	// LoginPassword sessions were created after a password check.
	LoginPassword LoginMode = "password"

	// LoginTrust sessions were created from a bare username.
	LoginTrust LoginMode = "trust"
)

// SessionData is the server-side payload a session cookie refers to.
type SessionData struct {
	Username  string
	FullName  string
	LoginMode LoginMode
}

// Session is a stored session record. ID is the fingerprint of the opaque
// identifier handed to the client, never the identifier itself.
type Session struct {
	ID         string
	Data       SessionData
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// Live reports whether the session is usable at now given an idle timeout.
// A zero idle timeout disables the idle check.
func (s Session) Live(now time.Time, idle time.Duration) bool {
	if !now.Before(s.ExpiresAt) {
		return false
	}
	if idle > 0 && !now.Before(s.LastSeenAt.Add(idle)) {
		return false
	}
	return true
}
