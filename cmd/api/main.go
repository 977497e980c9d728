// Package main is the entry point for the gateway server.
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

	"go.uber.org/zap"

	"github.com/skybound-ai/gateway/internal/auth"
	"github.com/skybound-ai/gateway/internal/config"
	"github.com/skybound-ai/gateway/internal/handler"
	natsclient "github.com/skybound-ai/gateway/internal/nats"
	"github.com/skybound-ai/gateway/internal/proxy"
	"github.com/skybound-ai/gateway/internal/service"
	"github.com/skybound-ai/gateway/internal/storage"
	"github.com/skybound-ai/gateway/pkg/logger"
	"github.com/skybound-ai/gateway/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}

	log.Info("starting gateway",
		zap.String("port", cfg.ServerPort),
		zap.String("storage", cfg.StorageDriver),
		zap.String("ai_service", cfg.AIServiceURL),
	)

	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	store, err := storage.Open(ctx, cfg.StorageDriver, cfg.StorageDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return err
	}

	var (
		publisher service.EventPublisher
		checks    []handler.ReadinessCheck
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}

		publisher = streamManager
		checks = append(checks, handler.ReadinessCheck{Name: "nats", Check: natsClient.Ping})
	} else {
		log.Info("NATS_URL not set, history events are not published")
	}

	authSvc := service.NewAuthService(store, tokens, cfg.BcryptCost, log)
	historySvc := service.NewHistoryService(store, publisher, log)

	forwarder := proxy.New(proxy.Config{
		BaseURL: cfg.AIServiceURL,
		Timeout: cfg.ProxyTimeout,
		Retries: cfg.ProxyRetries,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:              handler.NewAuthHandler(authSvc, log),
		Chat:              handler.NewChatHandler(forwarder, historySvc, log),
		History:           handler.NewHistoryHandler(historySvc, log),
		Health:            handler.NewHealthHandler(checks...),
		Tokens:            tokens,
		Logger:            log,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		CORSOrigins:       cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
