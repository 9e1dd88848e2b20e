package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"pdf-qa-rag/internal/config"
	"pdf-qa-rag/internal/metrics"
	"pdf-qa-rag/internal/pipeline"
	"pdf-qa-rag/internal/session"
	"pdf-qa-rag/internal/vectorstore"
)

// Ingester turns an uploaded file into a store.
type Ingester interface {
	Ingest(ctx context.Context, path string) (vectorstore.Store, *pipeline.Result, error)
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Config   *config.ServerConfig
	Sessions *session.Manager
	Ingester Ingester
	Answerer session.Answerer
	Metrics  *metrics.Metrics
}

// NewRouter creates the HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	h := &handlers{
		cfg:      deps.Config,
		sessions: deps.Sessions,
		ingester: deps.Ingester,
		answerer: deps.Answerer,
		metrics:  deps.Metrics,
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sample-questions", h.sampleQuestions)
		r.Post("/sessions", h.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", h.deleteSession)
			r.Post("/documents", h.uploadDocument)
			r.Post("/ask", h.ask)
			r.Get("/messages", h.messages)
			r.Delete("/messages", h.clearMessages)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	return r
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	srv *http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.srv.Addr).Msg("Starting HTTP server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return s.srv.Shutdown(shutdownCtx)
}
