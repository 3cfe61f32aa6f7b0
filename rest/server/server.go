package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ValentinKolb/jstore/lib/registry"
	"github.com/ValentinKolb/jstore/rest/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rest")

const (
	defaultMaxBodyBytes = 16 << 20
	shutdownGracePeriod = 10 * time.Second
)

// Server exposes a Registry over HTTP.
type Server struct {
	registry *registry.Registry
	config   common.ServerConfig
	handler  http.Handler
}

// NewServer creates the REST server for reg. It does not listen yet.
func NewServer(reg *registry.Registry, config common.ServerConfig) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{
		registry: reg,
		config:   config,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes registers every route on a new mux
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleListSources)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// sources
	mux.HandleFunc("GET /{source}", s.handleGetSource)
	mux.HandleFunc("PUT /{source}", s.handlePutSource)
	mux.HandleFunc("POST /{source}", s.handleCreateSource)
	mux.HandleFunc("DELETE /{source}", s.handleRemoveSource)

	// lifecycle and durability
	mux.HandleFunc("POST /{source}/_open", s.handleOpen)
	mux.HandleFunc("POST /{source}/_close", s.handleClose)
	mux.HandleFunc("POST /{source}/_flush", s.handleFlush)
	mux.HandleFunc("POST /{source}/_sync", s.handleSync)
	mux.HandleFunc("GET /{source}/_info", s.handleInfo)

	// sidecars
	mux.HandleFunc("GET /{source}/_config", s.handleGetConfig)
	mux.HandleFunc("PUT /{source}/_config", s.handlePutConfig)
	mux.HandleFunc("DELETE /{source}/_config", s.handleRemoveConfig)
	mux.HandleFunc("GET /{source}/_schema", s.handleGetSchema)
	mux.HandleFunc("DELETE /{source}/_schema", s.handleRemoveSchema)

	// documents
	mux.HandleFunc("GET /{source}/{key}", s.handleGetDocument)
	mux.HandleFunc("PUT /{source}/{key}", s.handlePutDocument)
	mux.HandleFunc("POST /{source}/{key}", s.handlePostDocument)
	mux.HandleFunc("DELETE /{source}/{key}", s.handleDeleteDocument)
	mux.HandleFunc("PATCH /{source}/{key}", s.handlePatchDocument)

	if s.config.LogLevel == "debug" {
		return loggerMiddleware(mux)
	}
	return mux
}

// Serve listens on the configured endpoint until ctx is cancelled, then shuts
// the HTTP server down gracefully. The registry is not touched.
func (s *Server) Serve(ctx context.Context) error {
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second
	srv := &http.Server{
		Addr:              s.config.Endpoint,
		Handler:           s.handler,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Infof("Starting HTTP server on %s", s.config.Endpoint)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		Logger.Infof("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
