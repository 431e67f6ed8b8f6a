// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"ecosystem-dashboard/internal/api"
	"ecosystem-dashboard/internal/config"
	"ecosystem-dashboard/internal/database"
	"ecosystem-dashboard/internal/github"
	"ecosystem-dashboard/internal/snapshot"
	"ecosystem-dashboard/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	store := database.NewStore(dbpool)
	if err := store.Ping(ctx); err != nil {
		return err
	}
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Connect to the snapshot key/value store
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ecosystem-dashboard"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Drain()
	snapshots, err := snapshot.NewStore(ctx, nc, cfg.SnapshotBucket, cfg.SnapshotKey)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	logger.Info("Snapshot store ready", "bucket", cfg.SnapshotBucket, "key", cfg.SnapshotKey)

	// 6. Initialize application components
	ghClient, err := github.NewClient(github.Options{
		Token:             cfg.GithubToken,
		BaseURL:           cfg.GithubAPIURL,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		PullState:         cfg.PullState,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	appSyncer, err := syncer.NewSyncer(store, ghClient, snapshots, logger, syncer.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	// 7. Start the syncer and the HTTP server
	syncerDone := make(chan error, 1)
	go func() { syncerDone <- appSyncer.Start(ctx) }()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(snapshots, func() error { return appSyncer.RunAsync(ctx) }, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 8. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		cancel()
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	select {
	case err := <-syncerDone:
		if err != nil {
			logger.Error("Syncer stopped with error", "error", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("Syncer did not stop in time")
	}
	logger.Info("Exiting")
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
