// Package server exposes the document gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
	"github.com/book-expert/doc-gateway-service/internal/events"
	"github.com/book-expert/doc-gateway-service/internal/gateway"
	"github.com/book-expert/doc-gateway-service/internal/metrics"
	"github.com/book-expert/doc-gateway-service/internal/pdfrender"
)

const (
	defaultMaxUploadBytes = 32 << 20
	// multipartMemory is how much of a form is held in memory before spilling to disk.
	multipartMemory   = 8 << 20
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
	publishTimeout    = 5 * time.Second
)

// Dependencies are the components a Server routes requests to.
type Dependencies struct {
	Workspace      *artifact.Workspace
	Renderer       *pdfrender.Renderer
	Gateway        *gateway.Gateway
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	Publisher      events.Publisher
}

// Options tunes request handling.
type Options struct {
	AllowedOrigins []string
	// ProtectFileFields are tried in order for the protect upload.
	ProtectFileFields []string
	// ProtectSecretFields are tried in order for the protect password.
	ProtectSecretFields []string
	MaxUploadBytes      int64
}

// Server handles convert, metadata and protect requests.
type Server struct {
	deps   Dependencies
	log    *logger.Logger
	config Options
}

// New creates a Server. Nil metrics and publisher dependencies become no-ops.
func New(deps Dependencies, opts Options, log *logger.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	if len(opts.ProtectFileFields) == 0 {
		opts.ProtectFileFields = []string{"pdfFile", "file"}
	}

	if len(opts.ProtectSecretFields) == 0 {
		opts.ProtectSecretFields = []string{"password", "secret"}
	}

	return &Server{deps: deps, log: log, config: opts}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /convert", s.instrumented("/convert", s.handleConvert))
	mux.HandleFunc("POST /metadata", s.instrumented("/metadata", s.handleMetadata))
	mux.HandleFunc("POST /protect", s.instrumented("/protect", s.handleProtect))
	mux.HandleFunc("POST /upload", s.instrumented("/upload", s.handleProtect))
	mux.HandleFunc("GET /health", s.instrumented("/health", handleHealth))

	if s.deps.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.deps.MetricsHandler)
	}

	return corsMiddleware(s.config.AllowedOrigins, mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, listenErr := net.Listen("tcp", addr)
	if listenErr != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, listenErr)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// No WriteTimeout: protect responses are streamed for as long as the downstream sends.
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.Serve(listener)
	}()

	s.log.Info("HTTP server listening on %s", listener.Addr())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown: %w", shutdownErr)
	}

	s.log.Info("HTTP server stopped")

	return nil
}

// publish emits a processed-document event. Failures are logged only.
func (s *Server) publish(ctx context.Context, scope *artifact.Scope, operation string, input *artifact.Artifact, opErr error) {
	outcome := events.StatusSucceeded
	if opErr != nil {
		outcome = events.StatusFailed
	}

	s.deps.Metrics.IncDocuments(operation, outcome)

	var (
		name string
		size int64
	)

	if input != nil {
		name = input.Name()
		size = input.Size()
	}

	event := events.NewDocumentProcessedEvent(scope.Prefix(), operation, name, size, opErr)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	pubErr := s.deps.Publisher.Publish(publishCtx, event)
	if pubErr != nil {
		s.log.Warn("Failed to publish %s event for '%s': %v", operation, name, pubErr)
	}
}
