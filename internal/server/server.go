package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/photobox/internal/version"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
}

func New(config *Config) (*Server, error) {
	svc, err := NewServices(config)
	if err != nil {
		return nil, err
	}
	return NewWithServices(config, svc)
}

// NewWithServices builds the server around already constructed services
func NewWithServices(config *Config, svc *Services) (*Server, error) {
	handler, err := SetupRoutes(config, svc)
	if err != nil {
		return nil, fmt.Errorf("setup routes: %w", err)
	}

	return &Server{
		config: config,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("photobox server start", "version", version.Version, "config", s.config)
	defer slog.Info("photobox server stop")

	if err := s.svc.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("photobox shutdown signal")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server error", "error", err)
			s.svc.Shutdown(context.Background())
			return err
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		slog.Error("photobox shutdown error", "error", err)
		return err
	}
	return nil
}

// Stop drains in-flight requests, uploads included, then releases the services
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	httpErr := s.server.Shutdown(shutdownCtx)
	svcErr := s.svc.Shutdown(shutdownCtx)
	return errors.Join(httpErr, svcErr)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLSEnabled() {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	} else {
		slog.Info("server start http", "addr", s.config.HTTP.Addr)
		return s.server.ListenAndServe()
	}
}
