package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/config"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	httpTransport "github.com/IgorGrieder/shortlink-analytics/internal/transport/http"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		shutdownTracer, err = telemetry.InitTracer(telemetry.Options{
			Endpoint:       cfg.OTel.Endpoint,
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Env,
		})
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
			shutdownTracer = nil
			telemetry.SetupPropagator()
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	} else {
		telemetry.SetupPropagator()
	}

	st, err := initStorage(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer st.Close()

	linkSvc := links.NewServiceWithOptions(st.links, st.clicks, st.outbox, links.NewCryptoGenerator(), links.ServiceOptions{
		CodeLength:            cfg.Shortener.CodeLength,
		MaxAllocationAttempts: cfg.Shortener.MaxAllocationAttempts,
	})

	routerOpts := httpTransport.DefaultRouterOptions()
	routerOpts.ServiceName = cfg.App.Name
	routerOpts.AllowedOrigins = cfg.Server.AllowedOrigins
	routerOpts.LinksHandlerOptions = httpTransport.LinksHandlerOptions{
		BaseURL:           cfg.Shortener.BaseURL,
		RedirectStatus:    cfg.Shortener.RedirectStatus,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		ClickTimeout:      cfg.Shortener.ClickTimeout,
	}
	router := httpTransport.NewRouter(linkSvc, httpTransport.NewHealthHandler(st.checks), routerOpts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.App.Env),
			zap.String("address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)),
			zap.String("base_url", cfg.Shortener.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("Failed to shutdown tracer", zap.Error(err))
		}
	}

	logger.Info("Server stopped gracefully")
}
