package ui

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"finagent/internal/httpserver"
	"finagent/internal/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed templates/index.html
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// maxQueryBytes bounds the form body.
const maxQueryBytes = 64 << 10

type Server struct {
	form *Form
	mux  *http.ServeMux
}

func NewServer(form *Form) *Server {
	s := &Server{
		form: form,
		mux:  http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /{$}", s.handleSubmit)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "ui")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.form.Idle(r.URL.Query().Get("agent")))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if err := r.ParseForm(); err != nil {
		v := s.form.Idle(r.URL.Query().Get("agent"))
		v.State = ShowingError
		v.Warning = "The query is too long."
		s.render(w, http.StatusBadRequest, v)
		return
	}

	v := s.form.Submit(r.Context(), r.PostFormValue("agent"), r.PostFormValue("query"))
	s.render(w, http.StatusOK, v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) render(w http.ResponseWriter, status int, v View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, v); err != nil {
		slog.Error("rendering page", "error", err)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return httpserver.Serve(ctx, "ui", addr, s.Handler())
}
