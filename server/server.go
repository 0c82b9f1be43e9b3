// Package server exposes the embed resolver over HTTPS with echo.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/byteness/embedrelay/config"
	"github.com/byteness/embedrelay/embed"
	"github.com/byteness/embedrelay/ratelimit"
)

// Resolver is the part of embed.Resolver the server uses.
type Resolver interface {
	ResolveEmbedURL(ctx context.Context, idToken, dashboardName string) (*embed.Result, error)
	LoginURL() string
}

// Route paths.
const (
	PathStatus = "/"
	PathLogin  = "/v1/aws/auth"
	PathEmbed  = "/v1/aws"
)

// Server serves the relay routes.
type Server struct {
	echo     *echo.Echo
	resolver Resolver
	limiter  ratelimit.RateLimiter
	config   *config.Config
	started  time.Time
}

// New builds the echo instance with middleware and routes. A nil limiter
// disables rate limiting.
func New(cfg *config.Config, resolver Resolver, limiter ratelimit.RateLimiter) *Server {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	s := &Server{
		echo:     echo.New(),
		resolver: resolver,
		limiter:  limiter,
		config:   cfg,
		started:  time.Now(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(securityHeaders())
	if origins := cfg.Origins(); len(origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodOptions},
			AllowCredentials: true,
		}))
	}

	e.GET(PathStatus, s.handleStatus)
	e.GET(PathLogin, s.handleLogin)
	e.GET(PathEmbed, s.handleEmbed, rateLimit(s.limiter))

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on the configured port until ctx is cancelled, then shuts
// down gracefully. tlsConfig may be nil for plain HTTP.
func (s *Server) Run(ctx context.Context, tlsConfig *tls.Config) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsConfig != nil {
			log.Printf("INFO: embedrelay listening on https://localhost%s", addr)
			err = srv.ListenAndServeTLS("", "")
		} else {
			log.Printf("INFO: embedrelay listening on http://localhost%s", addr)
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("INFO: shutting down server")
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
