package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a Prometheus gatherer over HTTP at /metrics, plus /health.
type Server struct {
	addr     string
	gatherer prometheus.Gatherer
	logger   types.Logger

	listener net.Listener
	server   *http.Server
}

// NewServer creates a metrics server.
//
// Parameters:
//   - addr: Listen address (e.g. ":9090", or "127.0.0.1:0" for an ephemeral port)
//   - gatherer: Metrics source (prometheus.DefaultGatherer if nil)
//   - log: Logger (no-op if nil)
//
// Returns:
//   - *Server: Server ready for Start
func NewServer(addr string, gatherer prometheus.Gatherer, log types.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{addr: addr, gatherer: gatherer, logger: logger.OrNop(log)}
}

// Start binds the listen address and serves in the background until Shutdown
// is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("metrics server started", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}

	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK\n")
}
