package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northfleet/podcrawl/internal/logging"
)

// Server lifecycle timeouts, matching the teacher crawler's
// internal/api.go StartHTTPServer defaults.
const (
	readTimeout       = 5 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 2 * time.Second
	shutdownGrace     = 5 * time.Second
)

// Server exposes a Registry's metrics over /metrics.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	log        logging.Logger
}

// NewServer builds a metrics HTTP server bound to addr (for example
// ":9090", per spec.md §6's prometheus_port).
func NewServer(addr string, reg *Registry, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		handler: mux,
		log:     log,
	}
}

// Handler returns the /metrics mux directly, for tests and for callers
// that want to mount it on an existing listener instead of opening a
// dedicated port.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the server and blocks until ctx is cancelled, at which
// point it shuts down within shutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		s.log.Info("metrics server stopped")
		return nil
	}
}
