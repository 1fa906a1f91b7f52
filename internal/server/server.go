// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/amp-optimizer/internal/config"
	"github.com/xkilldash9x/amp-optimizer/internal/pipeline"
	"github.com/xkilldash9x/amp-optimizer/internal/sanitize"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// server has been asked to stop.
const shutdownTimeout = 30 * time.Second

// Server hosts the optimizer over HTTP.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	blocks   *sanitize.BlockProcessor
	listener net.Listener
	handlers *Handlers
}

// Option configures a Server.
type Option func(*Server)

// WithBlockProcessor enables POST /api/v1/blocks.
func WithBlockProcessor(p *sanitize.BlockProcessor) Option {
	return func(s *Server) { s.blocks = p }
}

// WithListener serves on an existing listener instead of cfg.ListenAddr.
func WithListener(l net.Listener) Option {
	return func(s *Server) { s.listener = l }
}

// New creates a Server around an optimizer pipeline.
func New(cfg config.ServerConfig, p *pipeline.Pipeline, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "server")),
		pipeline: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = NewHandlers(s.logger, p, s.blocks, cfg.MaxBodyBytes)
	// One limiter for the whole server, so it survives Handler() being rebuilt.
	if cfg.RateLimit > 0 {
		s.handlers.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return s
}

// Handler builds the router with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer) // Catches panics
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	if s.cfg.Compress {
		r.Use(brotliCompressor().Handler)
	}
	r.Use(corsMiddleware)

	s.handlers.RegisterRoutes(r)
	return r
}

// brotliCompressor compresses HTML and JSON responses, preferring brotli and
// falling back to gzip or deflate.
func brotliCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(5, "text/html", "application/json")
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c
}

// requestLogger logs each request once it has been served.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("Request served",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Encoding")
		w.Header().Set("Access-Control-Expose-Headers", HeaderErrors+", "+HeaderStatus)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves until ctx is cancelled and then shuts down gracefully,
// letting in-flight requests finish. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
		}
	}

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("Optimizer server starting", zap.String("address", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Received shutdown signal, shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server stopped: %w", err)
	}
	s.logger.Info("Optimizer server stopped.")
	return nil
}
