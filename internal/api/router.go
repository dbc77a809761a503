package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"autotask/internal/core"
	"autotask/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the Manager facade and the run-history journal over
// HTTP.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	manager    *core.Manager
	store      *store.Store
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API server.
func NewServer(addr, authToken string, manager *core.Manager, st *store.Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		manager:   manager,
		store:     st,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Get("/scheduler", s.handleSchedulerStatus)
		r.Post("/scheduler/clear-completed", s.handleClearCompleted)
		r.Post("/cron/preview", s.handleCronPreview)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{taskName}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Post("/run", s.handleRunTask)
				r.Post("/schedule", s.handleScheduleTask)
				r.Post("/cancel", s.handleCancelTask)
				r.Get("/runs", s.handleListRuns)
			})
		})

		r.Get("/runs/{runID}", s.handleGetRun)
	})
}
