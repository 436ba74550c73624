// Package server exposes the resolution engine over HTTP: batch
// resolution, manual seeding, cache inspection, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/cache"
	"github.com/sells-group/atlas-cli/pkg/geocode"
)

// Server wraps the HTTP listener and routes for the resolution API.
type Server struct {
	httpServer *http.Server
	store      *cache.Store
	coord      *geocode.Coordinator
	log        *zap.Logger
}

// New builds a Server listening on addr, routing to the given cache
// store and batch coordinator.
func New(addr string, store *cache.Store, coord *geocode.Coordinator) *Server {
	s := &Server{
		store: store,
		coord: coord,
		log:   zap.L().With(zap.String("component", "server")),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Post("/seed", s.handleSeed)
		r.Get("/cache/status", s.handleCacheStatus)
		r.Delete("/cache", s.handleCacheClear)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed after a graceful
// shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
