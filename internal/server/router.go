// Package server exposes the gateway's HTTP surface.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/openfabrica/fabrica-toolgate/internal/access"
	"github.com/openfabrica/fabrica-toolgate/internal/catalog"
	"github.com/openfabrica/fabrica-toolgate/internal/dispatch"
	"github.com/openfabrica/fabrica-toolgate/internal/metrics"
	"github.com/openfabrica/fabrica-toolgate/internal/session"
)

// SessionHeader carries the session identifier on gateway calls.
const SessionHeader = "Toolgate-Session-ID"

// TierHeader optionally overrides the resolved tier for a single request.
// Only configured tier names apply; anything else is ignored.
const TierHeader = "Toolgate-Tier"

// Server holds the HTTP routing state.
type Server struct {
	version string
	commit  string
	build   string

	catalog    *catalog.Catalog
	tiers      *access.Tiers
	sessions   *session.Store
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New creates the gateway HTTP server. Metrics may be nil.
func New(
	version, commit, buildDate string,
	cat *catalog.Catalog,
	tiers *access.Tiers,
	sessions *session.Store,
	dispatcher *dispatch.Dispatcher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	return &Server{
		version:    version,
		commit:     commit,
		build:      buildDate,
		catalog:    cat,
		tiers:      tiers,
		sessions:   sessions,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gateway HTTP router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if s.catalog.Len() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"version":    s.version,
			"commit":     s.commit,
			"build_date": s.build,
		})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/toolgate/v1", func(r chi.Router) {
		r.Post("/session", s.handleOpenSession)
		r.Delete("/session", s.handleCloseSession)
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/call", s.handleCallTool)
		r.Get("/catalog.json", s.handleCatalogExport)
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("request completed")
		})
	}
}
