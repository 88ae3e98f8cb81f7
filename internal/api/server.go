// Package api serves stored workflows and their computed views over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/streaming"
	"github.com/rendis/flowlens/internal/validation"
	"github.com/rendis/flowlens/internal/view"
)

// maxBodyBytes bounds import payloads.
const maxBodyBytes = 16 << 20

// Deps holds the collaborators the API needs.
type Deps struct {
	Store   store.Store
	Views   *view.Service
	Loader  *validation.Loader
	Metrics *Metrics
	Events  streaming.Hub
	Logger  *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	store   store.Store
	views   *view.Service
	loader  *validation.Loader
	metrics *Metrics
	events  streaming.Hub
	logger  *slog.Logger
	router  chi.Router
}

// NewServer wires the router. Every dependency except Store and Views is
// optional.
func NewServer(deps Deps) (*Server, error) {
	s := &Server{
		store:   deps.Store,
		views:   deps.Views,
		loader:  deps.Loader,
		metrics: deps.Metrics,
		events:  deps.Events,
		logger:  deps.Logger,
	}
	if s.loader == nil {
		l, err := validation.NewLoader()
		if err != nil {
			return nil, err
		}
		s.loader = l
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.events == nil {
		s.events = streaming.NewMemoryHub()
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(s.requestContext)
	r.Use(enableCORS)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.handleListWorkflows)
		r.Post("/", s.handleSaveWorkflow)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkflow)
			r.Delete("/", s.handleDeleteWorkflow)
			r.Post("/executions", s.handleAppendExecutions)
			r.Get("/graph", s.handleGraph)
			r.Get("/metrics", s.handleNodeMetrics)
			r.Get("/diagram", s.handleDiagram)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

// requestContext attaches a request ID to the context and response, reusing
// the caller's X-Request-ID when present.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logging.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
