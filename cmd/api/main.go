// Package main is the entry point for the API server.
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/config"
	"github.com/capitalize-ai/proconnect/internal/gateway"
	"github.com/capitalize-ai/proconnect/internal/handler"
	natsclient "github.com/capitalize-ai/proconnect/internal/nats"
	"github.com/capitalize-ai/proconnect/internal/service"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
	"github.com/capitalize-ai/proconnect/pkg/tracing"
)

func main() {
	_ = godotenv.Load() // optional

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.FromEnv(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "proconnect", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Open the relational store
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Connect to NATS
	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	natsClient, err := natsclient.Connect(connectCtx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	cancelConnect()
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsClient.Close()

	// Ensure the change stream exists
	feed := natsclient.NewChangeFeed(natsClient, log)
	if err := feed.EnsureStream(ctx); err != nil {
		log.Fatal("failed to ensure change stream", zap.Error(err))
	}

	// Initialize services
	gw := gateway.New(st, feed, log)
	chatSvc := service.NewChatService(gw, service.ChatConfig{
		IdleTimeout:  cfg.SessionIdleTimeout,
		FetchTimeout: cfg.FetchTimeout,
	}, log)
	chatSvc.Start(ctx)
	defer chatSvc.Close()
	networkSvc := service.NewNetworkService(gw, cfg.PathMaxDepth, log)

	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(natsClient, st),
		Chat:              handler.NewChatHandler(chatSvc, log),
		Stream:            handler.NewStreamHandler(chatSvc, cfg.SSEHeartbeat, log),
		Network:           handler.NewNetworkHandler(networkSvc, log),
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Ending the sessions closes open event streams so Shutdown can drain them.
	chatSvc.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
