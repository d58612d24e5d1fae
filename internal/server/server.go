// Package server exposes the document pipeline over websocket and HTTP.
// Every request, whatever its transport, goes through one Loop so that
// exactly one run is in flight at a time.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int
	InputDir    string
}

// Server routes transport requests into the request loop.
type Server struct {
	loop     *Loop
	resolver Resolver
	journal  *journal.Journal
	cfg      Config
}

// Resolver fills defaults into a request and rejects malformed ones.
// *pipeline.Dispatcher implements it.
type Resolver interface {
	ResolveRequest(req pipeline.Request) (pipeline.Request, error)
}

// Option configures a Server.
type Option func(*Server)

// WithJournal enables the GET /requests listing.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// NewServer creates a server on top of loop.
func NewServer(cfg Config, loop *Loop, resolver Resolver, opts ...Option) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}
	s := &Server{loop: loop, resolver: resolver, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupRoutes registers all endpoints on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.websocketHandler)
	mux.HandleFunc("/documents", s.documentsHandler)
	mux.HandleFunc("/requests", s.requestsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.recoverMiddleware(s.corsMiddleware(mux))
}

// submit resolves req and hands it to the loop. Requests the resolver
// rejects are answered without a run.
func (s *Server) submit(ctx context.Context, req pipeline.Request) (Reply, error) {
	pr, err := s.resolver.ResolveRequest(req)
	if err != nil {
		return NewReply(pipeline.Request{ID: req.ID}, nil, err), nil
	}
	return s.loop.Submit(ctx, pr)
}
