package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"oxidecast/config"
)

// Server is the prediction HTTP server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires api and, when metrics is set, the Prometheus endpoint
// behind the middleware chain.
func NewServer(cfg config.ServerConfig, api *Handler, logger *zap.Logger, metrics bool) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	api.Register(mux)
	if metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	chain := Chain(
		LoggerMiddleware(logger),           // 1. request id and access log
		RecoveryMiddleware(logger),         // 2. panic recovery
		MetricsMiddleware,                  // 3. metrics
		SecurityHeadersMiddleware,          // 4. security headers
		CORSMiddleware(cfg.AllowedOrigins), // 5. CORS
		RequestSizeMiddleware(maxBody),     // 6. body size limit
	)

	return &Server{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           chain(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
