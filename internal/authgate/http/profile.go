package http

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authgate/internal/authgate/gate"
	"github.com/aussiebroadwan/authgate/pkg/authsdk"
	"github.com/aussiebroadwan/authgate/pkg/httpx"
)

// ProtectedHandler godoc
//
//	@Summary		Basic-auth protected route
//	@Description	Requires HTTP Basic credentials on every request.
//	@Tags			Basic
//	@Produce		json
//	@Security		BasicAuth
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Incorrect username or password"
//	@Header			401	{string}	WWW-Authenticate		"Basic"
//	@Router			/protected-route [get].
func ProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := gate.FromContext(r.Context())
		if !ok {
			httpx.WriteDetail(w, http.StatusUnauthorized, gate.DetailNotAuth)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
			Message: fmt.Sprintf("Welcome, %s. You've made it past the bouncer.", p.Username()),
		})
	}
}

// ProfileHandler godoc
//
//	@Summary		Current user profile
//	@Description	Accepts a bearer token or the session cookie. A present Authorization header always selects bearer.
//	@Tags			Profile
//	@Produce		json
//	@Security		BearerAuth
//	@Security		SessionCookie
//	@Success		200	{object}	authsdk.ProfileResponse
//	@Failure		400	{object}	authsdk.ErrorResponse	"Inactive user"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Not authenticated, Invalid token, Token expired, User not found, Invalid or expired session"
//	@Router			/profile [get].
func ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := gate.FromContext(r.Context())
		if !ok {
			httpx.WriteDetail(w, http.StatusUnauthorized, gate.DetailNotAuth)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.ProfileResponse{
			Username:   p.Username(),
			FullName:   p.FullName(),
			AuthMethod: string(p.Method()),
		})
	}
}
