package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	log      *logger.Logger
	srv      *nethttp.Server
	shutdown time.Duration
}

func NewServer(log *logger.Logger, cfg ServerConfig, router RouterConfig) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	return &Server{
		log: log,
		srv: &nethttp.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(router),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		shutdown: cfg.ShutdownTimeout,
	}
}

func (s *Server) Handler() nethttp.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled, then drains in-flight requests for up to the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
