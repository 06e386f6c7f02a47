package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authgate/internal/authgate/gate"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/pkg/authsdk"
	"github.com/aussiebroadwan/authgate/pkg/httpx"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

const (
	detailContentType = "Content-Type must be application/x-www-form-urlencoded"
	detailFormBody    = "Invalid form body"
	detailMissing     = "username and password are required"
)

// TokenHandler serves POST /token.
type TokenHandler struct {
	CredentialService *service.CredentialService
	TokenService      *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Issue a bearer token
//	@Description	Exchanges a username and password for an HS256 access token.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string					true	"Username"
//	@Param			password	formData	string					true	"Password"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400			{object}	authsdk.ErrorResponse	"missing fields or inactive user"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Incorrect username or password"
//	@Failure		500			{object}	authsdk.ErrorResponse
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Router			/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// 1. Ensure the right content-type
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		gate.Malformed(detailContentType).WriteError(w)
		return
	}

	// 2. Parse the form body
	if err := r.ParseForm(); err != nil {
		gate.Malformed(detailFormBody).WriteError(w)
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		gate.Malformed(detailMissing).WriteError(w)
		return
	}

	// 3. Verify credentials
	user, err := h.CredentialService.Authenticate(ctx, username, password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn("token request rejected", slog.String("reason", "invalid credentials"))
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.WriteDetail(w, http.StatusUnauthorized, gate.DetailBadCredentials)
		return
	case errors.Is(err, service.ErrInactiveUser):
		log.Warn("token request rejected", slog.String("reason", "inactive user"))
		httpx.WriteDetail(w, http.StatusBadRequest, gate.DetailInactiveUser)
		return
	case err != nil:
		log.Error("token request failed", slog.Any("error", err))
		httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
		return
	}

	// 4. Issue the token
	tok, err := h.TokenService.Issue(user.Username, 0)
	if err != nil {
		log.Error("failed to issue token", slog.Any("error", err))
		httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
		return
	}

	log.Info("token issued", slog.String("username", user.Username))
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   int(tok.ExpiresIn.Seconds()),
	})
}
