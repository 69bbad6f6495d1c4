package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/YibinLong/ZapStream/internal/api"
	"github.com/YibinLong/ZapStream/internal/application/factories/infrastructure"
	"github.com/YibinLong/ZapStream/internal/auth"
	"github.com/YibinLong/ZapStream/internal/config"
	"github.com/YibinLong/ZapStream/internal/ratelimit"
	"github.com/YibinLong/ZapStream/internal/relay"
	"github.com/YibinLong/ZapStream/internal/store"
	"github.com/YibinLong/ZapStream/internal/store/memory"
	storepg "github.com/YibinLong/ZapStream/internal/store/postgres"
	"github.com/YibinLong/ZapStream/internal/stream"
	"github.com/YibinLong/ZapStream/internal/usecase"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	// Event store
	var eventStore store.Store
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := infraFactory.Postgres(ctx)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		eventStore = storepg.NewEventRepository(pool)
	case "memory", "":
		eventStore = memory.New()
	default:
		logger.Error("unknown storage backend", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	// Fan-out: the local hub, optionally fed through the Redis backplane so
	// subscribers on other instances receive events too.
	hub := stream.NewHub()
	var fanout stream.Fanout

	if cfg.Redis.Addr != "" {
		redisClient, err := infraFactory.Redis(ctx)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		backplane := stream.NewBackplane(redisClient, hub)
		go func() {
			if err := backplane.Run(ctx); err != nil {
				logger.Error("backplane stopped", "error", err)
			}
		}()
		fanout = append(fanout, backplane)
	} else {
		fanout = append(fanout, hub)
	}

	// Optional best-effort Kafka mirror
	if cfg.Kafka.Topic != "" {
		mirror := relay.New(relay.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		go func() {
			if err := mirror.Run(ctx); err != nil {
				logger.Error("relay stopped", "error", err)
			}
		}()
		fanout = append(fanout, mirror)
	}

	resolver := auth.NewResolver(cfg.APIKeyTable())
	limiter := ratelimit.New(cfg.Limits.RatePerMinute)

	// UseCases
	ingestUC := usecase.NewIngestEvent(eventStore, limiter, fanout, cfg.Limits.MaxPayloadBytes)
	listUC := usecase.NewListInbox(eventStore)
	ackUC := usecase.NewAckEvent(eventStore)
	deleteUC := usecase.NewDeleteEvent(eventStore)

	handlers := api.NewHandlers(ingestUC, listUC, ackUC, deleteUC, cfg.App.Name, cfg.App.Version)
	streamHandler := api.NewStreamHandler(hub, time.Duration(cfg.Stream.HeartbeatSeconds)*time.Second)
	apiHandler := api.NewRouter(handlers, streamHandler, resolver, cfg.HTTP.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: apiHandler,
		// Tie request contexts to the process context so open SSE streams
		// terminate when shutdown starts, letting Shutdown drain cleanly.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("Server starting", "service", cfg.App.Name, "version", cfg.App.Version, "port", cfg.HTTP.Port, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exiting")
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
