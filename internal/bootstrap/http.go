package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiwed/auth-api/config"
	httpx "github.com/tiwed/auth-api/internal/http"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the server without starting it.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Services == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	routerServices := httpx.RouterServices{
		Auth:          cfg.Services.Auth,
		Authority:     cfg.Services.Authority,
		RefreshTTL:    appCfg.Auth.Token.RefreshTTL,
		SecureCookies: !appCfg.IsDev,
		Logger:        logger,
	}
	if cfg.Services.Metrics != nil {
		routerServices.Metrics = cfg.Services.Metrics
	}
	handler := httpx.NewRouter(routerServices)

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// StartHTTPServer starts the server in the background and returns it for
// graceful shutdown via ShutdownHTTPServer.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	server := NewHTTPServer(cfg)
	if server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// RunHTTPServer serves until ctx is canceled, then drains in-flight
// requests before returning.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	server := NewHTTPServer(cfg)
	if server == nil {
		return errors.New("http server not configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		// Detach from gctx: it is already canceled and would abort the drain.
		return ShutdownHTTPServer(context.Background(), server, logger)
	})

	return g.Wait()
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
