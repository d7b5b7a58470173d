// Package api is the HTTP/WS control surface: a chi router exposing the
// task-producing REST endpoints over the Task Execution Subsystem, the
// log-stream WebSocket bridge, and the health/ready/metrics trio.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/makr91/zoneweaver-api/pkg/artifact"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/log"
	"github.com/makr91/zoneweaver-api/pkg/logstream"
	"github.com/makr91/zoneweaver-api/pkg/metrics"
	"github.com/makr91/zoneweaver-api/pkg/scheduler"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/rs/zerolog"
)

// Server wires the task queue, storage, artifact engine and log-stream
// manager into an HTTP router. It holds no business logic of its own
// beyond request parsing/validation and task enqueueing.
type Server struct {
	queue    *scheduler.TaskQueue
	store    storage.Store
	artifact *artifact.Engine
	logs     *logstream.Manager
	cfg      *config.Provider
	logger   zerolog.Logger
	router   *chi.Mux
	apiKey   string
}

// New creates a Server and wires every route. apiKey, when non-empty,
// is required on every request via the X-Zoneweaver-Api-Key header; an
// empty apiKey disables authentication (local/dev use).
func New(queue *scheduler.TaskQueue, store storage.Store, artifactEngine *artifact.Engine, logs *logstream.Manager, cfg *config.Provider, apiKey string) *Server {
	s := &Server{
		queue:    queue,
		store:    store,
		artifact: artifactEngine,
		logs:     logs,
		cfg:      cfg,
		logger:   log.WithComponent("api"),
		router:   chi.NewRouter(),
		apiKey:   apiKey,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler for embedding in an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // artifact downloads and log streams are long-lived
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)
	if s.apiKey != "" {
		s.router.Use(s.authenticate)
	}

	s.router.Get("/health", metrics.HealthHandler())
	s.router.Get("/ready", metrics.ReadyHandler())
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Get("/{id}", s.getTask)
		r.Delete("/{id}", s.cancelTask)
	})

	s.router.Route("/artifacts", func(r chi.Router) {
		r.Route("/storage/paths", func(r chi.Router) {
			r.Get("/", s.listStorageLocations)
			r.Post("/", s.createStorageLocation)
			r.Put("/{id}", s.updateStorageLocation)
			r.Delete("/{id}", s.deleteStorageLocation)
		})
		r.Get("/", s.listArtifacts)
		r.Get("/iso", s.listArtifactsISO)
		r.Get("/image", s.listArtifactsImage)
		r.Get("/stats", s.artifactStats)
		r.Get("/service/status", s.artifactServiceStatus)
		r.Get("/{id}", s.getArtifact)
		r.Get("/{id}/download", s.downloadArtifact)
		r.Post("/download", s.enqueueDownload)
		r.Post("/upload", s.enqueueUpload)
		r.Post("/scan", s.enqueueScan)
		r.Delete("/files", s.enqueueDeleteFiles)
	})

	s.router.Route("/system", func(r chi.Router) {
		r.Route("/host", func(r chi.Router) {
			r.Post("/restart", s.hostLifecycle("system_host_restart"))
			r.Post("/reboot", s.hostLifecycle("system_host_reboot"))
			r.Post("/reboot/fast", s.hostLifecycle("system_host_fast_reboot"))
			r.Post("/shutdown", s.hostLifecycle("system_host_shutdown"))
			r.Post("/poweroff", s.hostLifecycle("system_host_poweroff"))
			r.Post("/halt", s.hostLifecycle("system_host_halt"))
			r.Post("/runlevel", s.hostLifecycle("system_host_runlevel_change"))
			r.Post("/single-user", s.hostLifecycle("system_host_enter_single_user"))
			r.Post("/multi-user", s.hostLifecycle("system_host_enter_multi_user"))
		})
		r.Route("/updates", func(r chi.Router) {
			r.Get("/check", s.systemUpdateCheck)
			r.Post("/install", s.enqueueSystemUpdate("system_update_install"))
			r.Post("/refresh", s.enqueueSystemUpdate("system_update_refresh"))
			r.Get("/history", s.systemUpdateHistory)
		})
		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.enqueueAccount("user_create"))
			r.Put("/{name}", s.enqueueAccount("user_modify"))
			r.Delete("/{name}", s.enqueueAccount("user_delete"))
			r.Post("/{name}/password", s.enqueueAccount("user_set_password"))
			r.Post("/{name}/lock", s.enqueueAccount("user_lock"))
			r.Post("/{name}/unlock", s.enqueueAccount("user_unlock"))
		})
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", s.enqueueAccount("group_create"))
			r.Put("/{name}", s.enqueueAccount("group_modify"))
			r.Delete("/{name}", s.enqueueAccount("group_delete"))
		})
		r.Route("/roles", func(r chi.Router) {
			r.Post("/", s.enqueueAccount("role_create"))
			r.Put("/{name}", s.enqueueAccount("role_modify"))
			r.Delete("/{name}", s.enqueueAccount("role_delete"))
		})
		r.Route("/logs", func(r chi.Router) {
			r.Post("/{logname}/stream/start", s.startLogStream)
			r.Get("/stream/sessions", s.listLogSessions)
			r.Delete("/stream/{sessionId}/stop", s.stopLogSession)
		})
	})

	s.router.Get("/logs/stream/{sessionId}", s.attachLogStream)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("elapsed", time.Since(start)).Msg("request")
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-Zoneweaver-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a uniform {"success":false,"error":...} body.
func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type taskAcceptedResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
