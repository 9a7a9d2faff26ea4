// Package playground serves the leaf agents over a small HTTP API for local
// experimentation.
package playground

import (
	"context"
	"net/http"
	"sync/atomic"

	"finagent/internal/agent"
	"finagent/internal/httpserver"
	"finagent/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dispatcher is what the playground needs from dispatch.Dispatcher.
type Dispatcher interface {
	Has(agentID string) bool
	DispatchStream(ctx context.Context, agentID, query string, emit func(agent.Event)) (string, error)
}

// Backend is one generation of the application as the playground sees it.
type Backend struct {
	Agents     []*agent.Agent
	Dispatcher Dispatcher
}

type Server struct {
	current atomic.Pointer[Backend]
	router  *mux.Router
	handler http.Handler
}

func NewServer(b *Backend) *Server {
	s := &Server{router: mux.NewRouter()}
	s.current.Store(b)
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.handler = otelhttp.NewHandler(c.Handler(s.router), "playground")
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/v1/playground/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/playground/agents", s.handleListAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/playground/agents/{agent_id}/runs", s.handleRun).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// Swap replaces the backend; in-flight requests finish on the old one.
func (s *Server) Swap(b *Backend) *Backend {
	return s.current.Swap(b)
}

func (s *Server) backend() *Backend {
	return s.current.Load()
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return httpserver.Serve(ctx, "playground", addr, s.Handler())
}
