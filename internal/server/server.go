package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/tether/internal/cache"
	"github.com/lazypower/tether/internal/connectivity"
	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/reconcile"
	"github.com/lazypower/tether/internal/store"
	"github.com/lazypower/tether/internal/usage"
	"github.com/lazypower/tether/internal/voice"
)

// Services are the components the API exposes.
type Services struct {
	Reminders *reconcile.Engine
	Queue     *queue.Queue
	Cache     *cache.Cache
	Usage     *usage.Limiter
	Voice     *voice.Pipeline
	Probe     connectivity.Probe
}

// Server is the tether HTTP API server.
type Server struct {
	db      *store.DB
	svc     Services
	log     *slog.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given database and services.
func New(db *store.DB, svc Services, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:      db,
		svc:     svc,
		log:     logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/reminders", s.handleListReminders)
		r.Post("/reminders", s.handleCreateReminder)
		r.Patch("/reminders/{id}", s.handleUpdateStatus)
		r.Delete("/reminders/{id}", s.handleDeleteReminder)
		r.Post("/sync", s.handleSync)

		r.Post("/voice", s.handleCapture)
		r.Get("/queue", s.handleListQueue)
		r.Post("/queue", s.handleEnqueue)
		r.Post("/queue/process", s.handleProcessQueue)

		r.Get("/usage", s.handleUsage)
		r.Post("/cache/prune", s.handlePruneCache)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping() == nil
	online := s.svc.Probe != nil && s.svc.Probe.Online(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"online":  online,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
