// Package api exposes the forge over HTTP for the game frontend.
//
// Endpoints:
//
//	GET  /health        liveness probe
//	GET  /ready         readiness probe (fullnode reachability)
//	GET  /metrics       Prometheus metrics
//	POST /api/metadata  generate card name/element from a prompt
//	POST /api/artwork   generate card artwork, returned as a data URL
//	POST /api/upload    persist an image to Walrus, returns the blob URL
//
// Handlers here are thin: validation plus a call into the same
// internals the pipeline daemon uses.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardforge/cardforge/internal/log"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading a request.
	// Uploads carry whole images, so this is generous.
	ReadTimeout = 60 * time.Second

	// WriteTimeout covers artwork generation, the slowest handler.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout bounds keep-alive connections.
	IdleTimeout = 2 * time.Minute

	// maxBodyBytes bounds request bodies; generated images stay well
	// under this.
	maxBodyBytes = 50 << 20
)

// Server is the HTTP server for the forge API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// ServerConfig wires the server's collaborators.
type ServerConfig struct {
	Logger log.Logger

	// Metadata and Artwork are usually both the forge.
	Metadata MetadataGenerator
	Artwork  ArtworkGenerator
	Blobs    BlobStore

	// Pinger checks fullnode reachability for /ready. Optional.
	Pinger Pinger

	// ReferenceDir holds per-rarity style reference images.
	ReferenceDir string

	// StoreEpochs is how many epochs uploaded blobs are paid for.
	StoreEpochs int
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	forgeHandler, err := NewForgeHandler(cfg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	NewHealthHandler(cfg.Pinger, logger).RegisterRoutes(mux)
	forgeHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request id → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(http.MaxBytesHandler(s.mux, maxBodyBytes),
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
	)
}
