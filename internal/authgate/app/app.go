package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authgate/internal/authgate/http"
	"github.com/aussiebroadwan/authgate/internal/authgate/service"
	"github.com/aussiebroadwan/authgate/internal/authgate/store"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/drivers/postgres"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/drivers/redis"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/authgate/internal/authgate/store/memory"
	"github.com/aussiebroadwan/authgate/pkg/cookiex"
	"github.com/aussiebroadwan/authgate/pkg/cryptox"
	"github.com/aussiebroadwan/authgate/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via -ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the authgate service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	users    store.UserStore
	sessions store.SessionStore
	closers  []store.Backend
	secrets  secrets

	// Services
	hasher              *cryptox.Hasher
	credentialService   *service.CredentialService
	tokenService        *service.TokenService
	sessionManager      *service.SessionManager
	seedService         *service.SeedService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application with every dependency initialized and the
// seed file applied.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	ctx := slogx.WithContext(context.Background(), app.logger)

	if err := app.initStores(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	s, err := loadSecrets(cfg, app.logger)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	app.secrets = s

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}

	if err := app.seed(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	if err := app.auditHashes(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Close releases the stores of an application that was never Run.
func (app *Application) Close() error { return app.closeStores() }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("authgate starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"user_store", app.cfg.UserStore,
		"session_store", app.cfg.SessionStore,
		"session_login", app.cfg.SessionLogin,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeStores()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authgate...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("authgate stopped")
	return nil
}

// initStores opens the configured drivers. When both stores name the same
// SQL driver a single connection serves both.
func (app *Application) initStores(ctx context.Context) error {
	open := func(driver string) (store.Backend, error) {
		switch driver {
		case DriverSQLite:
			return sqlite.NewStore(app.cfg.DatabaseFile)
		case DriverPostgres:
			return postgres.NewStore(ctx, app.cfg.PostgresDSN)
		case DriverRedis:
			return redis.NewStore(ctx, app.cfg.RedisURL)
		default:
			return memory.New(), nil
		}
	}

	users, err := open(app.cfg.UserStore)
	if err != nil {
		return fmt.Errorf("failed to open %s user store: %w", app.cfg.UserStore, err)
	}
	app.closers = append(app.closers, users)

	sessions := users
	if app.cfg.SessionStore != app.cfg.UserStore {
		sessions, err = open(app.cfg.SessionStore)
		if err != nil {
			return fmt.Errorf("failed to open %s session store: %w", app.cfg.SessionStore, err)
		}
		app.closers = append(app.closers, sessions)
	}

	for _, b := range app.closers {
		if err := b.ApplyMigrations(ctx); err != nil {
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
	}
	app.logger.Info("store migrations applied successfully")

	// Validate has already restricted each driver to the right role.
	app.users = users.(store.UserStore)
	app.sessions = sessions.(store.SessionStore)
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	for _, b := range app.closers {
		if err := b.Close(); err != nil {
			app.logger.Error("error closing store", "error", err)
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	hasher, err := cryptox.NewHasher(cryptox.Scheme(app.cfg.PasswordScheme), app.cfg.BcryptCost, app.secrets.pepper)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	app.hasher = hasher

	app.credentialService, err = service.NewCredentialService(app.users, hasher)
	if err != nil {
		return fmt.Errorf("failed to initialize credential service: %w", err)
	}

	app.tokenService, err = service.NewTokenService(app.secrets.tokenKey, service.TokenConfig{
		Issuer: app.cfg.Issuer,
		TTL:    app.cfg.TokenTTL,
		Now:    app.cfg.now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	sameSite, _ := parseSameSite(app.cfg.CookieSameSite)
	codec, err := cookiex.New(app.secrets.cookieHash, app.secrets.cookieBlock, cookiex.Options{
		Name:     app.cfg.CookieName,
		Secure:   app.cfg.CookieSecure,
		SameSite: sameSite,
		MaxAge:   app.cfg.SessionLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session cookie codec: %w", err)
	}
	app.sessionManager = service.NewSessionManager(app.sessions, codec, service.SessionConfig{
		Lifetime:    app.cfg.SessionLifetime,
		IdleTimeout: app.cfg.SessionIdleTimeout,
		Now:         app.cfg.now,
	})

	app.seedService = &service.SeedService{Store: app.users, Hasher: hasher}

	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	if app.cfg.now != nil {
		app.housekeepingService.Now = app.cfg.now
	}
	return nil
}

// seed applies the seed file to an empty credential store. A missing file
// is only logged.
func (app *Application) seed(ctx context.Context) error {
	if app.cfg.SeedFile == "" {
		return nil
	}
	if _, err := os.Stat(app.cfg.SeedFile); errors.Is(err, os.ErrNotExist) {
		app.logger.Warn("seed file not found, skipping", "path", app.cfg.SeedFile)
		return nil
	}

	sf, err := service.LoadSeedFile(app.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	start := time.Now()
	n, err := app.seedService.Apply(ctx, sf)
	if err != nil {
		return fmt.Errorf("failed to apply seed file: %w", err)
	}
	if n > 0 {
		app.logger.Info("credential store seeded",
			"path", app.cfg.SeedFile,
			"users", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// auditHashes warns about users whose stored hash was made with another
// scheme or cost. Their failed logins are distinguishable by timing from
// unknown usernames until the hash is regenerated with authgate-passwd.
func (app *Application) auditHashes(ctx context.Context) error {
	stale, err := app.credentialService.AuditHashes(ctx)
	if err != nil {
		return fmt.Errorf("failed to audit password hashes: %w", err)
	}
	for _, username := range stale {
		app.logger.Warn("stored password hash does not match configured scheme and cost",
			"username", username,
			"scheme", app.cfg.PasswordScheme,
		)
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.users,
		app.sessions,
		app.logger,
	)

	// Wire services to router
	router.CredentialService = app.credentialService
	router.TokenService = app.tokenService
	router.SessionManager = app.sessionManager
	router.LoginMode = app.cfg.SessionLogin
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
