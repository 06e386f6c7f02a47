package gate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authgate/pkg/httpx"
)

// Kind classifies a rejection.
type Kind int

const (
	// KindUnauthorized covers bad, missing or expired credentials (401).
	KindUnauthorized Kind = iota + 1

	// KindForbidden is a verified identity that may not proceed, such as a
	// disabled account (400).
	KindForbidden

	// KindMalformed is a request missing required input (400).
	KindMalformed

	// KindInternal is a server-side failure (500). Its cause is never sent
	// to the client.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindMalformed:
		return "malformed"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Client-facing details.
const (
	DetailBadCredentials = "Incorrect username or password"
	DetailNotAuth        = "Not authenticated"
	DetailInvalidToken   = "Invalid token"
	DetailTokenExpired   = "Token expired"
	DetailUserNotFound   = "User not found"
	DetailInactiveUser   = "Inactive user"
	DetailBadSession     = "Invalid or expired session"
	DetailInternal       = "Internal server error"
)

// Rejection is the error every Gate returns. Detail and Challenge go to the
// client; Reason and Err are for operator logs only.
type Rejection struct {
	Kind      Kind
	Status    int
	Detail    string
	Challenge string
	Reason    string
	Err       error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %v", r.Kind, r.Reason, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// WriteError writes the rejection as {"detail": ...} with its status and,
// for 401s, the WWW-Authenticate challenge.
func (r *Rejection) WriteError(w http.ResponseWriter) {
	if r.Challenge != "" {
		w.Header().Set("WWW-Authenticate", r.Challenge)
	}
	httpx.WriteDetail(w, r.Status, r.Detail)
}

// AsRejection returns err as a *Rejection, converting anything else into an
// internal rejection.
func AsRejection(err error) *Rejection {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	return internal("unexpected error", err)
}

func unauthorized(challenge, detail, reason string, err error) *Rejection {
	return &Rejection{
		Kind:      KindUnauthorized,
		Status:    http.StatusUnauthorized,
		Detail:    detail,
		Challenge: challenge,
		Reason:    reason,
		Err:       err,
	}
}

func forbidden(detail, reason string, err error) *Rejection {
	return &Rejection{
		Kind:   KindForbidden,
		Status: http.StatusBadRequest,
		Detail: detail,
		Reason: reason,
		Err:    err,
	}
}

// Malformed builds a 400 for requests missing required input.
func Malformed(detail string) *Rejection {
	return &Rejection{
		Kind:   KindMalformed,
		Status: http.StatusBadRequest,
		Detail: detail,
		Reason: "malformed request",
	}
}

func internal(reason string, err error) *Rejection {
	return &Rejection{
		Kind:   KindInternal,
		Status: http.StatusInternalServerError,
		Detail: DetailInternal,
		Reason: reason,
		Err:    err,
	}
}
