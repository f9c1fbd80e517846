package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmmcquay/goban-mcp/internal/cache"
	"github.com/dmmcquay/goban-mcp/internal/health"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/metrics"
	"github.com/dmmcquay/goban-mcp/internal/session"
	"github.com/dmmcquay/goban-mcp/internal/sgf"
)

// Options wires the read-only HTTP endpoints. Cache and Metrics may be nil.
type Options struct {
	Addr     string
	Logger   logging.ContextLogger
	Checker  *health.Checker
	Metrics  *metrics.PrometheusCollector
	Sessions *session.Manager
	Cache    *cache.Manager
}

// HTTPServer provides HTTP endpoints for health checks, metrics and game
// inspection.
type HTTPServer struct {
	server   *http.Server
	logger   logging.ContextLogger
	listener net.Listener
}

// NewHTTPServer creates a new HTTP server.
func NewHTTPServer(opts Options) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: opts.Logger,
	}
}

// NewRouter builds the routes without binding a socket.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(PrometheusMiddleware(opts.Metrics))
	r.Use(LoggingMiddleware(opts.Logger))

	r.Get("/health", opts.Checker.LivenessHandler())
	r.Get("/ready", opts.Checker.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	g := &gameHandlers{sessions: opts.Sessions, cache: opts.Cache}
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", g.list)
		r.Get("/{id}", g.view)
		r.Get("/{id}/sgf", g.record)
	})
	r.Get("/cache", g.cacheStats)

	return r
}

// Start binds the listener and serves in the background. Bind errors are
// returned; serve errors are logged.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr reports the bound address once Start has returned.
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the HTTP server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type gameHandlers struct {
	sessions *session.Manager
	cache    *cache.Manager
}

type sessionList struct {
	Sessions []string `json:"sessions"`
	Count    int      `json:"count"`
	Max      int      `json:"max"`
}

func (g *gameHandlers) list(w http.ResponseWriter, r *http.Request) {
	ids := g.sessions.IDs()
	writeJSON(w, http.StatusOK, sessionList{Sessions: ids, Count: len(ids), Max: g.sessions.MaxSessions()})
}

func (g *gameHandlers) view(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (g *gameHandlers) record(w http.ResponseWriter, r *http.Request) {
	sess, ok := g.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/x-go-sgf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.ID+".sgf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sgf.Encode(sess.State())))
}

func (g *gameHandlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	if !g.cache.IsEnabled() {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Enabled bool `json:"enabled"`
		cache.Stats
	}{true, g.cache.Stats()})
}

func (g *gameHandlers) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := g.sessions.Get(chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
