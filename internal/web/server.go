package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mlowery/go-crowdmix/internal/auth"
	"github.com/mlowery/go-crowdmix/internal/curator"
	"github.com/mlowery/go-crowdmix/internal/db"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr          string
	Authenticator *auth.Authenticator
	Database      *db.DB
	Curator       *curator.Service
	Logger        zerolog.Logger
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	sessions *SessionStore
	handlers *Handlers
	log      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	sessions := NewSessionStore()
	handlers := NewHandlers(cfg.Authenticator, sessions, cfg.Database, cfg.Curator, cfg.Logger)

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		sessions: sessions,
		handlers: handlers,
		log:      cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// OAuth
	s.router.Get("/auth/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Post("/auth/logout", s.handlers.Logout)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/me", s.handlers.Me)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", s.handlers.CreateEvent)
			r.Get("/", s.handlers.ListEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", s.handlers.GetEvent)
				r.Post("/archive", s.handlers.ArchiveEvent)

				r.Post("/preferences", s.handlers.SubmitPreferences)
				r.Post("/preferences/spotify", s.handlers.ImportTaste)

				r.Post("/refresh", s.handlers.RefreshEvent)
				r.Get("/buckets", s.handlers.Buckets)
				r.Post("/candidates", s.handlers.Candidates)
				r.Get("/harmonic", s.handlers.Harmonic)

				r.Get("/queue", s.handlers.Queue)
				r.Post("/queue", s.handlers.AddToQueue)
				r.Post("/queue/reorder", s.handlers.ReorderQueue)

				r.Post("/export", s.handlers.ExportQueue)
			})
		})

		r.Route("/queue/{entryID}", func(r chi.Router) {
			r.Post("/remove", s.handlers.RemoveQueueEntry)
			r.Post("/reinstate", s.handlers.ReinstateQueueEntry)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt
// signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info().Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}
