// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/dialogue-tree/internal/config"
	"github.com/capitalize-ai/dialogue-tree/internal/handler"
	"github.com/capitalize-ai/dialogue-tree/internal/middleware"
	natsclient "github.com/capitalize-ai/dialogue-tree/internal/nats"
	"github.com/capitalize-ai/dialogue-tree/internal/service"
	"github.com/capitalize-ai/dialogue-tree/internal/summarizer"
	"github.com/capitalize-ai/dialogue-tree/pkg/logger"
	"github.com/capitalize-ai/dialogue-tree/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "dialogue-tree", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS when change notifications are published
	opts := service.Options{
		Layout: cfg.Layout,
	}
	var natsChecker handler.ConnectionChecker
	if cfg.NATSEnabled {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err := natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		cancel()
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		// Ensure JetStream stream exists
		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}

		opts.Notifier = streamManager
		opts.Events = streamManager
		natsChecker = natsClient
	} else {
		log.Info("NATS disabled, dialogue changes are only logged")
	}

	// Initialize summarizer
	defaults := cfg.SummarizerDefaults()
	if defaults.Credential == "" {
		log.Warn("no summarizer API key configured, node edits will fail",
			zap.String("transport", defaults.Transport),
		)
	}
	opts.Summarizer = summarizer.New(defaults, cfg.SummarizerTimeout, log)

	// Initialize services
	dialogueSvc := service.NewDialogueService(opts, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsChecker)
	dialogueHandler := handler.NewDialogueHandler(dialogueSvc, log,
		middleware.UserRateLimit(cfg.EditRateLimitRequests, cfg.RateLimitWindow),
	)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RequireWriteScope(cfg.JWTWriteScope))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		dialogueHandler.Routes(r)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
