package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int
	CORSOrigin     string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:           addr,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxConcurrent:  runtime.NumCPU() * 2,
	}
}

// NewRouter registers every route with its middleware. metricsHandler is
// mounted at /metrics when non-nil.
func NewRouter(cfg ServerConfig, handlers *Handlers, log *zap.Logger, metricsHandler http.Handler) *mux.Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := mux.NewRouter()

	// Concurrency limiter.
	sem := make(chan struct{}, cfg.MaxConcurrent)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return withMiddleware(h, sem, cfg, log)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/route", wrap(handlers.HandleRoute)).Methods(http.MethodPost)
	v1.HandleFunc("/snap", wrap(handlers.HandleSnap)).Methods(http.MethodPost)
	v1.HandleFunc("/vertices", wrap(handlers.HandlePlaceVertex)).Methods(http.MethodPost)
	v1.HandleFunc("/edges/{id}/split", wrap(handlers.HandleSplitEdge)).Methods(http.MethodPost)
	v1.HandleFunc("/polylines/{id}/vertices/{index:[0-9]+}/move", wrap(handlers.HandleMoveVertex)).Methods(http.MethodPost)
	v1.HandleFunc("/polylines", wrap(handlers.HandleListPolylines)).Methods(http.MethodGet)
	v1.HandleFunc("/polylines/{id}", wrap(handlers.HandleGetPolyline)).Methods(http.MethodGet)
	v1.HandleFunc("/polylines/{id}", wrap(handlers.HandlePutPolyline)).Methods(http.MethodPut)
	v1.HandleFunc("/polylines/{id}", wrap(handlers.HandleDeletePolyline)).Methods(http.MethodDelete)
	v1.HandleFunc("/nodes/nearest", wrap(handlers.HandleNearestNode)).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{id}/tags", wrap(handlers.HandlePutNodeTags)).Methods(http.MethodPut)
	v1.HandleFunc("/health", wrap(handlers.HandleHealth)).Methods(http.MethodGet)
	v1.HandleFunc("/stats", wrap(handlers.HandleStats)).Methods(http.MethodGet)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	return r
}

// NewServer creates an HTTP server with all routes and middleware.
func NewServer(cfg ServerConfig, handlers *Handlers, log *zap.Logger, metricsHandler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(cfg, handlers, log, metricsHandler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts the server and blocks until shutdown signal.
func ListenAndServe(srv *http.Server, log *zap.Logger) error {
	// Graceful shutdown on SIGTERM/SIGINT.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.Stringer("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

// statusRecorder captures the status code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware wraps a handler with logging, recovery, security headers,
// and concurrency limiting.
func withMiddleware(handler http.HandlerFunc, sem chan struct{}, cfg ServerConfig, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Security headers.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		// CORS.
		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		// Concurrency limiter.
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", "", "")
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Recovery.
		defer func() {
			if p := recover(); p != nil {
				log.Error("panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeError(rec, http.StatusInternalServerError, "internal_error", "", "")
			}
		}()

		// Request timeout.
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		start := time.Now()
		handler(rec, r.WithContext(ctx))
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
