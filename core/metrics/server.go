package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/docshelf/core/logger"
)

// Server exposes Registry over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Handler returns the promhttp handler bound to Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Start listens on addr and serves metrics at path in the background.
// An empty addr returns a nil server and no error.
func Start(addr, path string) (*Server, error) {
	if addr == "" {
		return nil, nil
	}
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("metrics server stopped",
				slog.String("component", "metrics"),
				slog.String("event", "serve"),
				slog.String("err", err.Error()),
			)
		}
	}()

	logger.L.Info("metrics listening",
		slog.String("component", "metrics"),
		slog.String("event", "listen"),
		slog.String("listen", ln.Addr().String()),
		slog.String("path", path),
	)
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server. A nil server is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
