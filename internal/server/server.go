// Package server assembles the HTTP surface: the app shell, the live
// WebSocket endpoint, label images, health and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sacarolha/sacarolha/internal/config"
	"github.com/sacarolha/sacarolha/internal/live"
	"github.com/sacarolha/sacarolha/pkg/authguard"
	"github.com/sacarolha/sacarolha/pkg/labels"
	"github.com/sacarolha/sacarolha/pkg/middleware"
	"github.com/sacarolha/sacarolha/pkg/wine"
)

// Provider is what the live endpoint needs from the identity layer:
// the auth operations plus the persisted-session hint.
type Provider interface {
	authguard.Provider
	HasPersistedSession() bool
}

// ProviderFactory builds one Provider per live connection. Provider
// state (current user, refresh token, listeners) is per-visitor: a
// shared instance would broadcast one visitor's sign-in to everyone.
type ProviderFactory func(ctx context.Context) (Provider, error)

// Server is the assembled HTTP server.
type Server struct {
	cfg         config.Config
	newProvider ProviderFactory
	wines       wine.Store
	labels      labels.Store
	metrics     *middleware.Metrics
	logger      *slog.Logger

	healthcheck func(ctx context.Context) error
	upgrader    websocket.Upgrader
	http        *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithHealthcheck adds a readiness probe to /healthz.
func WithHealthcheck(probe func(ctx context.Context) error) Option {
	return func(s *Server) { s.healthcheck = probe }
}

// WithMetrics attaches request and session metrics.
func WithMetrics(m *middleware.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds the server. The wine and label stores may be nil; the
// corresponding screens and endpoints then serve without data.
func New(cfg config.Config, newProvider ProviderFactory, wines wine.Store, labelStore labels.Store, opts ...Option) *Server {
	s := &Server{
		cfg:         cfg,
		newProvider: newProvider,
		wines:       wines,
		labels:      labelStore,
		logger:      slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Handler)
	}
	r.Use(middleware.Tracing())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/live", s.handleLive)

	if s.labels != nil {
		r.Method(http.MethodPost, "/labels", labels.UploadHandler(s.labels, s.cfg.Labels.MaxSize))
		r.Method(http.MethodGet, "/labels/{wineID}", labels.ServeHandler(s.labels, func(req *http.Request) string {
			return chi.URLParam(req, "wineID")
		}))
	}

	// Every app path serves the shell; the client connects to /live and
	// the session decides what actually renders.
	r.NotFound(s.handleShell)
	return r
}

// handleLive upgrades the connection and runs a live session for its
// lifetime. Each connection gets its own provider so one visitor's
// sign-in or sign-out never reaches another visitor's session.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	provider, err := s.newProvider(r.Context())
	if err != nil {
		s.logger.Error("building session provider failed", "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionOpts := []live.Option{live.WithLogger(s.logger)}
	if s.wines != nil {
		sessionOpts = append(sessionOpts, live.WithWineStore(s.wines))
	}
	if s.metrics != nil {
		sessionOpts = append(sessionOpts, live.WithMetrics(s.metrics))
	}

	session := live.NewSession(conn, provider, provider.HasPersistedSession, live.Config{
		FailSafe:    s.cfg.Server.FailSafe,
		InitialPath: r.URL.Query().Get("path"),
	}, sessionOpts...)

	s.logger.Info("live session started", "session_id", session.ID(), "remote", r.RemoteAddr)
	if err := session.Run(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("live session ended", "session_id", session.ID(), "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthcheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.healthcheck(ctx); err != nil {
			s.logger.Error("healthcheck failed", "error", err)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Server.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }
