package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/carbonledger/analyst/internal/aggregate"
	"github.com/carbonledger/analyst/internal/api"
	"github.com/carbonledger/analyst/internal/config"
	"github.com/carbonledger/analyst/internal/conversation"
	"github.com/carbonledger/analyst/internal/hermes"
	"github.com/carbonledger/analyst/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("analyst starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	catalogs := conversation.NewCatalogCache(db, cfg.CatalogTTL, slog.Default())

	// NATS/Hermes (optional, the analyst answers turns without it)
	var publisher conversation.Publisher
	var events api.EventBus
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Warn("NATS unavailable, running without events", "error", err)
	} else {
		defer hermesClient.Close()
		publisher = hermesClient
		events = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)

		if err := hermesClient.Subscribe(hermes.SubjectTaxonomyUpdated, catalogs.HandleTaxonomyUpdated); err != nil {
			slog.Error("failed to subscribe to taxonomy events", "error", err)
			os.Exit(1)
		}
	}

	engine := aggregate.New(db, slog.Default())
	manager := conversation.New(db, engine, catalogs, db, publisher, cfg.DefaultFiscalYearStart, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, manager, db, events, cfg.TurnTimeout, slog.Default())
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("analyst ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.TurnTimeout+5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	cancel()
	slog.Info("analyst stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
