package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authgate/internal/authgate/domain"
	"github.com/aussiebroadwan/authgate/internal/authgate/gate"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/pkg/httpx"
	"github.com/aussiebroadwan/authgate/pkg/slogx"

	_ "github.com/aussiebroadwan/authgate/api/authgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits groups the limiter profiles used by the router. Zero-valued
// profiles disable limiting.
type RateLimits struct {
	Strict  httpx.RateLimitConfig
	Lenient httpx.RateLimitConfig
	Public  httpx.RateLimitConfig
}

// DefaultRateLimits returns the httpx profiles with environment overrides.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:  httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit),
		Lenient: httpx.ParseRateLimitFromEnv("LENIENT", httpx.LenientLimit),
		Public:  httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit),
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	userStore    store.UserStore
	sessionStore store.SessionStore

	CredentialService *service.CredentialService
	TokenService      *service.TokenService
	SessionManager    *service.SessionManager
	LoginMode         domain.LoginMode
	RateLimits        RateLimits
}

func NewRouter(
	buildVersion string,
	users store.UserStore,
	sessions store.SessionStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		userStore:    users,
		sessionStore: sessions,
		LoginMode:    domain.LoginPassword,
		RateLimits:   DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
		httpx.SecurityHeaders(),
	}

	return r
}

// ApplyRoutes registers every route. Services must be set beforehand.
func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerBasic()
	r.registerToken()
	r.registerSession()
	r.registerProfile()

	r.Mux.Handle("GET /swagger/",
		httpx.Chain(httpSwagger.Handler(),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			authgate API
//	@version		0.1.0
//	@description	HTTP authentication with Basic credentials, HS256 bearer tokens and server-side cookie sessions.
//	@description
//	@description	Every error response has the body {"detail": "..."}.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/authgate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.basic	BasicAuth
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						session_id
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) bearerGate() gate.Gate {
	return gate.Bearer{Tokens: r.TokenService, Credentials: r.CredentialService}
}

func (r *Router) sessionGate() gate.Gate {
	return gate.Session{Sessions: r.SessionManager, Credentials: r.CredentialService}
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /{$}",
		httpx.Chain(RootHandler(),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)
	r.Mux.Handle("GET /health",
		httpx.Chain(HealthHandler(),
			httpx.RateLimitByIP(r.RateLimits.Public),
		),
	)

	// Probes - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.userStore, r.sessionStore),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
}

func (r *Router) registerBasic() {
	r.Mux.Handle("GET /protected-route",
		httpx.Chain(ProtectedHandler(),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
			gate.Require(gate.Basic{Credentials: r.CredentialService}),
		),
	)
}

func (r *Router) registerToken() {
	// POST /token - strict rate limit by IP + username to prevent brute force
	h := &TokenHandler{
		CredentialService: r.CredentialService,
		TokenService:      r.TokenService,
	}
	r.Mux.Handle("POST /token",
		httpx.Chain(h,
			httpx.RateLimitByIPAndFormField(r.RateLimits.Strict, "username"),
		),
	)
}

func (r *Router) registerSession() {
	login := &LoginHandler{
		CredentialService: r.CredentialService,
		SessionManager:    r.SessionManager,
		Mode:              r.LoginMode,
	}
	r.Mux.Handle("POST /login",
		httpx.Chain(login,
			httpx.RateLimitByIPAndFormField(r.RateLimits.Strict, "username"),
		),
	)

	logout := &LogoutHandler{SessionManager: r.SessionManager}
	r.Mux.Handle("POST /logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
}

func (r *Router) registerProfile() {
	r.Mux.Handle("GET /profile",
		httpx.Chain(ProfileHandler(),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
			gate.Require(gate.Any(r.bearerGate(), r.sessionGate())),
		),
	)
}
