// Package server wires handlers, middleware and routes into an HTTP server.
//
// This is the composition root: New builds the whole dependency chain in
// one place,
//
//	config → store → services → handlers → router
//
// and Start runs it until SIGINT/SIGTERM. Each layer only receives what it
// needs: services get repository interfaces, handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/config"
	"github.com/sakif/task-tracker/internal/handler"
	"github.com/sakif/task-tracker/internal/middleware"
	"github.com/sakif/task-tracker/internal/repository"
	"github.com/sakif/task-tracker/internal/repository/memory"
	pgRepo "github.com/sakif/task-tracker/internal/repository/postgres"
	sqliteRepo "github.com/sakif/task-tracker/internal/repository/sqlite"
	"github.com/sakif/task-tracker/internal/service"
)

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.Store
}

// New opens the configured store and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	if err := s.setupRoutes(); err != nil {
		store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// openStore picks the storage backend from DB_DRIVER.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		db, err := pgRepo.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	default:
		if cfg.DBPath != ":memory:" {
			// mkdir -p for the database file's directory.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return db, nil
	}
}

// buildProviders registers every sign-in method that is configured.
func buildProviders(cfg config.Config) (*auth.Providers, error) {
	var oauth []auth.OAuthProvider
	if cfg.Google.Enabled() {
		oauth = append(oauth, auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL))
	}
	if cfg.GitHub.Enabled() {
		oauth = append(oauth, auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL))
	}

	var creds *auth.CredentialsProvider
	if cfg.Credentials.Enabled() {
		passwords := auth.NewPasswordService()
		hash := cfg.Credentials.PasswordHash
		if hash == "" {
			var err error
			if hash, err = passwords.Hash(cfg.Credentials.Password); err != nil {
				return nil, fmt.Errorf("hashing CREDENTIALS_PASSWORD: %w", err)
			}
		}
		creds = auth.NewCredentialsProvider(cfg.Credentials.Email, hash, cfg.Credentials.Name, passwords)
	}

	return auth.NewProviders(creds, oauth...), nil
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET    /                               → home page (HTML, session required)
//	GET    /auth/signin                    → sign-in page (HTML)
//	GET    /robots.txt
//	GET    /static/*                       → assets from STATIC_DIR, if present
//	GET    /api/auth/providers             → enabled providers
//	GET    /api/auth/session               → current session or {}
//	POST   /api/auth/signout               → clear the session cookie
//	GET    /api/auth/signin/{provider}     → redirect to the OAuth provider
//	GET    /api/auth/callback/{provider}   → OAuth callback
//	POST   /api/auth/callback/credentials  → email/password sign-in
//	GET    /api/tasks                      → list (q, page, pageSize)
//	POST   /api/tasks                      → create
//	PATCH  /api/tasks/{id}/toggle          → toggle done
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: tags each request for the logs
//  2. RealIP: client IP from proxy headers
//  3. Recoverer: a panic becomes a 500, never a crash
//  4. Logger: one line per request
//  5. LoadSession: puts a valid session in the context, if any
//  6. Guard: redirects anonymous page requests to /auth/signin
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return err
	}
	providers, err := buildProviders(s.config)
	if err != nil {
		return err
	}
	s.logger.Info("sign-in providers enabled", slog.Any("providers", providers.Names()))

	s.router.Use(auth.LoadSession(tokens))
	s.router.Use(auth.Guard)

	// DEPENDENCY CHAIN:
	//   store → TaskService/AuthService → handlers
	taskService := service.NewTaskService(s.store, s.logger)
	authService := service.NewAuthService(s.store, tokens, s.logger)

	taskHandler := handler.NewTaskHandler(taskService, s.logger)
	authHandler := handler.NewAuthHandler(authService, providers, s.config.CookieSecure, s.logger)
	pageHandler, err := handler.NewPageHandler(taskService, authService, providers, s.config.CookieSecure, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	if info, err := os.Stat(s.config.StaticDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	s.router.Get("/", pageHandler.HandleHome)
	s.router.Get(auth.SignInPath, pageHandler.HandleSignIn)
	s.router.Get("/robots.txt", pageHandler.HandleRobots)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/providers", authHandler.HandleProviders)
			r.Get("/session", authHandler.HandleSession)
			r.Post("/signout", authHandler.HandleSignOut)
			r.Get("/signin/{provider}", authHandler.HandleSignIn)
			r.Get("/callback/{provider}", authHandler.HandleCallback)
			r.Post("/callback/credentials", authHandler.HandleCredentials)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.HandleList)
			r.Post("/", taskHandler.HandleCreate)
			r.Patch("/{id}/toggle", taskHandler.HandleToggle)
		})
	})

	return nil
}

// ServeHTTP makes the Server usable directly as an http.Handler (tests use
// it with httptest).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the store. Start calls it on the way out.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests up to 30s,
// then close the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("store", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
