package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/memory"
	"github.com/aussiebroadwan/authgate/pkg/authsdk"
	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/aussiebroadwan/authgate/pkg/httpx"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router *Router
	store  *memory.Store
	tokens *service.TokenService
	now    time.Time
}

func newTestEnv(t *testing.T, mode domain.LoginMode) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := &testEnv{store: memory.New(), now: time.Now().UTC()}
	clock := func() time.Time { return env.now }

	hasher, err := cryptox.NewHasher(cryptox.SchemeBcrypt, bcrypt.MinCost, []byte("router-test-pepper"))
	require.NoError(t, err)

	seed, err := service.ParseSeed(strings.NewReader(`
users:
  - {username: admin, full_name: Administrator, password: secret-password}
  - {username: alice, full_name: Alice Anderson, password: wonderland}
  - {username: carol, full_name: Carol Cookie, password: biscuits}
  - {username: mallory, password: sneaky, disabled: true}
`))
	require.NoError(t, err)
	_, err = (&service.SeedService{Store: env.store, Hasher: hasher}).Apply(ctx, seed)
	require.NoError(t, err)

	creds, err := service.NewCredentialService(env.store, hasher)
	require.NoError(t, err)
	env.tokens, err = service.NewTokenService([]byte("router-test-token-key-0123456789ab"), service.TokenConfig{Now: clock})
	require.NoError(t, err)
	codec, err := cookiex.New([]byte("router-test-cookie-key-0123456789a"), nil, cookiex.Options{
		Name:   "session_id",
		MaxAge: time.Hour,
	})
	require.NoError(t, err)

	r := NewRouter("test", env.store, env.store, slogx.Discard())
	r.CredentialService = creds
	r.TokenService = env.tokens
	r.SessionManager = service.NewSessionManager(env.store, codec, service.SessionConfig{Now: clock})
	r.LoginMode = mode
	r.RateLimits = RateLimits{}
	r.ApplyRoutes()

	env.router = r
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body authsdk.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Detail
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.UserStore)
	require.Equal(t, "test", health.Version)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProtectedRoute(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	req := httptest.NewRequest(http.MethodGet, "/protected-route", nil)
	req.SetBasicAuth("admin", "secret-password")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Welcome, admin. You've made it past the bouncer."}`, rec.Body.String())

	for _, creds := range [][2]string{{"admin", "wrong"}, {"nobody", "secret-password"}} {
		req := httptest.NewRequest(http.MethodGet, "/protected-route", nil)
		req.SetBasicAuth(creds[0], creds[1])
		rec := env.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "Basic", rec.Header().Get("WWW-Authenticate"))
		require.Equal(t, "Incorrect username or password", decodeDetail(t, rec))
	}
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	rec := env.do(formRequest(http.MethodPost, "/token", url.Values{"username": {"alice"}, "password": {"wonderland"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var tok authsdk.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	require.Equal(t, "bearer", tok.TokenType)
	require.Equal(t, 1800, tok.ExpiresIn)

	claims, err := env.tokens.Validate(tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		detail string
	}{
		{
			name:   "wrong password",
			req:    formRequest(http.MethodPost, "/token", url.Values{"username": {"alice"}, "password": {"x"}}),
			status: http.StatusUnauthorized,
			detail: "Incorrect username or password",
		},
		{
			name:   "inactive user",
			req:    formRequest(http.MethodPost, "/token", url.Values{"username": {"mallory"}, "password": {"sneaky"}}),
			status: http.StatusBadRequest,
			detail: "Inactive user",
		},
		{
			name:   "missing password",
			req:    formRequest(http.MethodPost, "/token", url.Values{"username": {"alice"}}),
			status: http.StatusBadRequest,
			detail: detailMissing,
		},
		{
			name: "json body",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":"alice"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			}(),
			status: http.StatusBadRequest,
			detail: detailContentType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.detail, decodeDetail(t, rec))
		})
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProfileWithBearer(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	tok, err := env.tokens.Issue("alice", 0)
	require.NoError(t, err)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		return env.do(req)
	}

	rec := get()
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"username":"alice","full_name":"Alice Anderson","auth_method":"bearer"}`, rec.Body.String())

	env.now = env.now.Add(31 * time.Minute)
	rec = get()
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	require.Equal(t, "Token expired", decodeDetail(t, rec))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/profile", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Not authenticated", decodeDetail(t, rec))
}

func TestProfileInactiveUser(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	tok, err := env.tokens.Issue("alice", 0)
	require.NoError(t, err)
	require.NoError(t, env.store.Users().SetDisabled(context.Background(), "alice", true))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec := env.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Inactive user", decodeDetail(t, rec))
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session_id" {
			return ck
		}
	}
	t.Fatal("no session_id cookie set")
	return nil
}

func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	rec := env.do(formRequest(http.MethodPost, "/login", url.Values{"username": {"carol"}, "password": {"biscuits"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/profile", rec.Header().Get("Location"))
	ck := sessionCookie(t, rec)
	require.True(t, ck.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(ck)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"username":"carol","full_name":"Carol Cookie","auth_method":"session"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(ck)
	rec = env.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(t, rec)
	require.Equal(t, -1, cleared.MaxAge)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(ck)
	rec = env.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired session", decodeDetail(t, rec))

	// Logout without a cookie still succeeds.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	tests := []struct {
		name   string
		form   url.Values
		status int
		detail string
	}{
		{"wrong password", url.Values{"username": {"carol"}, "password": {"x"}}, http.StatusUnauthorized, "Incorrect username or password"},
		{"unknown user", url.Values{"username": {"zed"}, "password": {"x"}}, http.StatusUnauthorized, "Incorrect username or password"},
		{"inactive user", url.Values{"username": {"mallory"}, "password": {"sneaky"}}, http.StatusBadRequest, "Inactive user"},
		{"no password", url.Values{"username": {"carol"}}, http.StatusBadRequest, "password is required in password login mode"},
		{"no username", url.Values{}, http.StatusBadRequest, "username is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(formRequest(http.MethodPost, "/login", tt.form))
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.detail, decodeDetail(t, rec))
			require.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestLoginTrustMode(t *testing.T) {
	env := newTestEnv(t, domain.LoginTrust)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/login?username=carol", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	first := sessionCookie(t, rec)

	// Logging in again replaces the previous session.
	req := httptest.NewRequest(http.MethodPost, "/login?username=carol", nil)
	req.AddCookie(first)
	rec = env.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	second := sessionCookie(t, rec)
	require.NotEqual(t, first.Value, second.Value)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(first)
	require.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(second)
	require.Equal(t, http.StatusOK, env.do(req).Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/login?username=nobody", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSwaggerDocument(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Swagger string `json:"swagger"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "2.0", doc.Swagger)
	require.Equal(t, "authgate API", doc.Info.Title)
	for _, path := range []string{"/protected-route", "/token", "/login", "/logout", "/profile"} {
		require.Contains(t, doc.Paths, path)
	}
}

func TestRecoverFromPanic(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)
	env.router.Mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic(errors.New("kaboom"))
	})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal server error", decodeDetail(t, rec))
}

func TestRateLimitedLogin(t *testing.T) {
	env := newTestEnv(t, domain.LoginPassword)
	env.router.Mux = http.NewServeMux()
	env.router.RateLimits = RateLimits{Strict: httpx.RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	}}
	env.router.ApplyRoutes()

	var last int
	for range 3 {
		rec := env.do(formRequest(http.MethodPost, "/token", url.Values{"username": {"alice"}, "password": {"x"}}))
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
