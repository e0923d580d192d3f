// Package server wires the application together: it owns the router,
// the route table, the middleware order, and the dependency graph from
// database up to handlers. main.go stays minimal; everything that can
// be constructed from a Config happens here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/handler"
	"github.com/Dav1dde/notifico/internal/middleware"
	sqliteRepo "github.com/Dav1dde/notifico/internal/repository/sqlite"
	"github.com/Dav1dde/notifico/internal/service"
)

// Config holds everything the server needs to start.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string

	// GitHub OAuth application credentials for the account linking
	// flow. Leave empty to run without GitHub linking.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Server is the HTTP server and the resources it owns. The database
// connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Each layer receives only the interfaces it needs; handlers never see
// the database and services never see HTTP.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes builds the middleware stack and the route table.
//
// Middleware order: request ID and real IP first (so the logger sees
// them), panic recovery, the request logger, then CurrentUser — every
// route downstream can ask who is calling. The guards themselves are
// applied per route group.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured — service linking disabled")
	}

	passwords := auth.NewPasswordService()
	accounts := service.NewAccountService(s.db.Users(), s.db.Tokens(), passwords, s.logger)
	projects := service.NewProjectService(s.db.Projects(), s.logger)

	accountHandler := handler.NewAccountHandler(accounts, tokens, github, s.logger)
	projectHandler := handler.NewProjectHandler(projects, accounts, s.logger)
	publicHandler := handler.NewPublicHandler(projects, s.logger)
	adminHandler := handler.NewAdminHandler(accounts, s.logger)
	hookHandler := handler.NewHookHandler(projects, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.CurrentUser(tokens, accounts))

	s.router.Get("/", publicHandler.HandleLanding)

	s.router.Route("/account", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireNoUser)
			r.Post("/signup", accountHandler.HandleSignup)
			r.Post("/login", accountHandler.HandleLogin)
		})

		r.Post("/logout", accountHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/me", accountHandler.HandleMe)
			r.Post("/password", accountHandler.HandlePasswordChange)
			r.Post("/delete", accountHandler.HandleDeleteAccount)

			r.Get("/services", accountHandler.HandleListServices)
			r.Delete("/services/{id}", accountHandler.HandleUnlinkService)
			r.Get("/services/github", accountHandler.HandleGitHubConnect)
			r.Get("/services/github/callback", accountHandler.HandleGitHubCallback)
		})
	})

	s.router.Route("/projects", func(r chi.Router) {
		r.Get("/{username}/{project}", projectHandler.HandleDetails)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/", projectHandler.HandleCreate)
			r.Get("/{username}", projectHandler.HandleDashboard)
			r.Put("/{username}/{project}", projectHandler.HandleUpdate)
			r.Delete("/{username}/{project}", projectHandler.HandleDelete)
		})
	})

	s.router.Post("/h/{projectID}", hookHandler.HandlePing)

	s.router.Route("/admin", func(r chi.Router) {
		r.With(auth.RequireUser).Get("/make", adminHandler.HandleMake)
		r.With(auth.RequireGroup("admin")).Get("/error/{code}", adminHandler.HandleError)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database (flushes the WAL).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
