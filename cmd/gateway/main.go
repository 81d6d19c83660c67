// Package main is the entry point for the chat gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/backend"
	"github.com/capitalize-ai/chat-gateway/internal/cache"
	"github.com/capitalize-ai/chat-gateway/internal/config"
	"github.com/capitalize-ai/chat-gateway/internal/handler"
	"github.com/capitalize-ai/chat-gateway/internal/interaction"
	natsclient "github.com/capitalize-ai/chat-gateway/internal/nats"
	"github.com/capitalize-ai/chat-gateway/internal/ratelimit"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/internal/telegram"
	"github.com/capitalize-ai/chat-gateway/internal/tenant"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/tracing"
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
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting chat gateway",
		zap.String("platform", cfg.PlatformName),
		zap.Bool("webhook_mode", cfg.UseWebhook),
		zap.String("cache_driver", cfg.CacheDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	// Cache
	var store cache.Store
	switch cfg.CacheDriver {
	case config.CacheDriverMemory:
		log.Warn("using in-process cache; rate limits and tenant cache are not shared between replicas")
		store = cache.NewMemoryStore()
	default:
		store = cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		// Not fatal: the limiter fails open and the resolver falls back to the backend.
		log.Warn("cache unreachable at startup", zap.Error(err))
	}

	// Backend and notification sinks
	backendClient := backend.New(backend.Config{
		BaseURL:  cfg.BackendURL,
		APIKey:   cfg.BackendAPIKey,
		Platform: cfg.PlatformName,
		Timeout:  cfg.BackendTimeout,
	}, log)

	sinks := []interaction.Sink{backendClient}
	checks := []handler.ReadinessCheck{{Name: "cache", Check: store.Ping}}

	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Drain()

		publisher := natsclient.NewPublisher(natsClient)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		sinks = append(sinks, publisher)
		checks = append(checks, handler.ReadinessCheck{Name: "nats", Check: natsClient.Ping})
	}

	notifier := interaction.NewNotifier(cfg.NotifyTimeout, log, sinks...)

	// Platform
	// getUpdates holds the connection for PollTimeout, so polling needs the
	// longer client timeout. Sends and file lookups stay bounded per call.
	clientTimeout := cfg.PlatformTimeout
	if !cfg.UseWebhook {
		clientTimeout += telegram.PollTimeout
	}
	bot, err := telegram.NewBot(cfg.BotToken, clientTimeout, log)
	if err != nil {
		log.Fatal("failed to authenticate bot", zap.Error(err))
	}
	dispatcher := telegram.NewDispatcher(bot, cfg.PlatformTimeout, log)
	converter := telegram.NewConverter(bot, cfg.PlatformTimeout, log)

	// Pipeline
	keyPrefix := strings.ToLower(cfg.PlatformName) + ":"
	gateway := service.NewGateway(cfg.WebhookSecret, service.Deps{
		Limiter: ratelimit.New(store, ratelimit.Config{
			KeyPrefix: keyPrefix,
			Threshold: cfg.RateLimitMessages,
			Window:    cfg.RateLimitWindow,
		}, log),
		Resolver: tenant.NewResolver(store, backendClient, tenant.Config{
			KeyPrefix: keyPrefix,
			TTL:       cfg.TenantCacheTTL,
		}, log),
		Recorder:    interaction.NewRecorder(backendClient, cfg.PlatformName, log),
		Dispatcher:  dispatcher,
		Notifier:    notifier,
		Attachments: converter,
	}, log)

	routes := handler.RouterConfig{
		Health:              handler.NewHealthHandler(checks...),
		Send:                handler.NewSendHandler(gateway, log),
		AllowedOrigins:      cfg.AllowedOrigins,
		SendJWTSecret:       cfg.SendJWTSecret,
		SendRateLimit:       cfg.SendRateLimitRequests,
		SendRateLimitWindow: cfg.SendRateLimitWindow,
		Logger:              log,
	}

	pollDone := make(chan struct{})
	if cfg.UseWebhook {
		close(pollDone)
		routes.Webhook = handler.NewWebhookHandler(gateway, converter, log)
		if cfg.WebhookConfigured() {
			if err := telegram.RegisterWebhook(bot, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
				log.Fatal("failed to register webhook", zap.Error(err))
			}
			log.Info("webhook registered", zap.String("url", cfg.WebhookURL))
		} else {
			log.Warn("TELEGRAM_WEBHOOK_URL not set; expecting the webhook to be registered externally")
		}
	} else {
		if err := telegram.DeleteWebhook(bot); err != nil {
			log.Fatal("failed to delete webhook", zap.Error(err))
		}
		log.Info("webhook deleted, using polling mode")
		go func() {
			defer close(pollDone)
			telegram.NewPoller(bot, log).Run(ctx, handler.Poll(gateway, converter))
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(routes),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	<-pollDone
	notifier.Wait()

	log.Info("server stopped")
}
