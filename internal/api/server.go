// Package api exposes the enrichment trigger, cancel and status endpoints
// over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/store"
)

// Enricher starts and cancels enrichment runs. *enrich.Service satisfies it.
type Enricher interface {
	Start(ctx context.Context, client model.ClientInput, force bool) (*model.Session, error)
	Cancel(ctx context.Context, clientID string) (bool, error)
}

// Server holds the handlers' collaborators.
type Server struct {
	enricher    Enricher
	store       store.Store
	corsOrigins []string
}

// NewServer creates a Server. An empty corsOrigins allows any origin.
func NewServer(enricher Enricher, st store.Store, corsOrigins []string) *Server {
	return &Server{enricher: enricher, store: st, corsOrigins: corsOrigins}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() chi.Router {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Post("/enrich", s.startEnrichment)
		r.Post("/enrich/cancel", s.cancelEnrichment)
		r.Get("/clients", s.listClients)
		r.Get("/clients/{clientID}", s.getClient)
		r.Get("/clients/{clientID}/sessions", s.listSessions)
	})

	return r
}

// HTTPServer wraps the router in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
