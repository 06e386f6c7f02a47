package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/gate"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/httpx"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

// LoginHandler serves POST /login. Fields may arrive in the query string or
// a form body.
type LoginHandler struct {
	CredentialService *service.CredentialService
	SessionManager    *service.SessionManager
	Mode              domain.LoginMode
}

// ServeHTTP godoc
//
//	@Summary		Start a cookie session
//	@Description	Verifies the user, stores a server-side session and sets the signed session_id cookie.
//	@Description	In trust login mode only the username is required.
//	@Tags			Session
//	@Accept			application/x-www-form-urlencoded
//	@Param			username	formData	string	true	"Username"
//	@Param			password	formData	string	false	"Password (not required in trust mode)"
//	@Success		303			"Redirect to /profile with Set-Cookie"
//	@Failure		400			{object}	authsdk.ErrorResponse	"missing fields or inactive user"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Incorrect username or password"
//	@Router			/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		gate.Malformed(detailFormBody).WriteError(w)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" {
		gate.Malformed("username is required").WriteError(w)
		return
	}

	var (
		user domain.User
		err  error
	)
	if h.Mode == domain.LoginTrust {
		user, err = h.CredentialService.Identify(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			err = service.ErrInvalidCredentials
		}
	} else {
		if password == "" {
			gate.Malformed("password is required in password login mode").WriteError(w)
			return
		}
		user, err = h.CredentialService.Authenticate(ctx, username, password)
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Warn("login rejected", slog.String("reason", "invalid credentials"))
		httpx.WriteDetail(w, http.StatusUnauthorized, gate.DetailBadCredentials)
		return
	case errors.Is(err, service.ErrInactiveUser):
		log.Warn("login rejected", slog.String("reason", "inactive user"))
		httpx.WriteDetail(w, http.StatusBadRequest, gate.DetailInactiveUser)
		return
	case err != nil:
		log.Error("login failed", slog.Any("error", err))
		httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
		return
	}

	// Never reuse an identifier the client already held.
	if old, err := h.SessionManager.FromRequest(r); err == nil {
		if err := h.SessionManager.Delete(ctx, old); err != nil {
			log.Warn("failed to delete previous session", slog.Any("error", err))
		}
	}

	id, err := h.SessionManager.Create(ctx, domain.SessionData{
		Username:  user.Username,
		FullName:  user.FullName,
		LoginMode: h.Mode,
	})
	if err != nil {
		log.Error("failed to create session", slog.Any("error", err))
		httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
		return
	}
	if err := h.SessionManager.Issue(w, id); err != nil {
		log.Error("failed to issue session cookie", slog.Any("error", err))
		_ = h.SessionManager.Delete(ctx, id)
		httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
		return
	}

	log.Info("session created", slog.String("username", user.Username), slog.String("login_mode", string(h.Mode)))
	httpx.NoCache(w)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// LogoutHandler serves POST /logout.
type LogoutHandler struct {
	SessionManager *service.SessionManager
}

// ServeHTTP godoc
//
//	@Summary		End the cookie session
//	@Description	Deletes the server-side session (if any) and clears the cookie. Succeeds without a cookie.
//	@Tags			Session
//	@Success		303	"Redirect to / with an expired Set-Cookie"
//	@Failure		500	{object}	authsdk.ErrorResponse
//	@Router			/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if id, err := h.SessionManager.FromRequest(r); err == nil {
		if err := h.SessionManager.Delete(ctx, id); err != nil {
			log.Error("failed to delete session", slog.Any("error", err))
			httpx.WriteDetail(w, http.StatusInternalServerError, gate.DetailInternal)
			return
		}
		log.Info("session deleted")
	}

	h.SessionManager.Clear(w)
	httpx.NoCache(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
