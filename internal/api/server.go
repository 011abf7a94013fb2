package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// Server runs an echo instance until its context ends.
type Server struct {
	Echo     *echo.Echo
	settings conf.ServerSettings
	logger   logger.Logger
}

// NewServer wraps e with the listen address and timeouts from settings.
func NewServer(e *echo.Echo, settings conf.ServerSettings) *Server {
	return &Server{Echo: e, settings: settings, logger: GetLogger()}
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.settings.Listen,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logger.String("addr", s.settings.Listen))
		if err := s.Echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.settings.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
