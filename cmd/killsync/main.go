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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/killsync/internal/adapter/driven/eveapi"
	"github.com/ericfisherdev/killsync/internal/adapter/driven/redislock"
	sqliteadapter "github.com/ericfisherdev/killsync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/killsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/killsync/internal/application"
	"github.com/ericfisherdev/killsync/internal/config"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
	"github.com/ericfisherdev/killsync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, cfg.LogLevel, os.Getenv("NO_COLOR") != "")
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"cycle_interval", cfg.CycleInterval,
		"api_base_url", cfg.APIBaseURL,
		"redis", cfg.HasRedis(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	characterStore := sqliteadapter.NewCharacterRepo(db)
	killmailStore := sqliteadapter.NewKillmailRepo(db)
	settings := application.NewSettings(sqliteadapter.NewStorageRepo(db))
	api := eveapi.NewClient(cfg.APIBaseURL, cfg.APITimeout)

	// 6. Choose the shard lock backend.
	var locker driven.ShardLocker = application.NewLocalShardLocker()
	if cfg.HasRedis() {
		redisLocker, err := redislock.New(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer func() { _ = redisLocker.Close() }()
		locker = redisLocker
		slog.Info("using redis shard locks", "ttl", cfg.LockTTL)
	}

	// 7. Create application services.
	gate := application.NewAccessGate(api)
	mutator := application.NewStateMutator(credentialStore, characterStore, settings)
	ingester := application.NewKillmailIngester(killmailStore)
	worker := application.NewFetchWorker(credentialStore, characterStore, api, gate, settings, ingester, mutator, 0)
	keySvc := application.NewKeyService(credentialStore, characterStore, gate, mutator)

	// 8. Start the fetch scheduler.
	scheduler := application.NewFetchScheduler(characterStore, settings, locker, worker, cfg.LockWait)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx, cfg.CycleInterval)
	}()

	// 9. HTTP server for admission, status, health and metrics.
	apiHandler := httphandler.NewHandler(keySvc, killmailStore, settings, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("killsync started",
		"listen_addr", cfg.ListenAddr,
		"cycle_interval", cfg.CycleInterval,
		"lock_wait", cfg.LockWait,
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	select {
	case <-schedulerDone:
		if err := scheduler.Drain(shutdownCtx); err != nil {
			slog.Warn("shard workers still running at shutdown deadline", "error", err)
		}
	case <-shutdownCtx.Done():
		slog.Warn("fetch scheduler did not stop before shutdown deadline")
	}

	slog.Info("shutdown complete")
	return nil
}
