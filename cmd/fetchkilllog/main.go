// Command fetchkilllog runs a single fetch pass over one shard and exits.
// It takes the same shard lock as the daemon, so it is safe to trigger from
// cron while killsync is running.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/killsync/internal/adapter/driven/eveapi"
	"github.com/ericfisherdev/killsync/internal/adapter/driven/redislock"
	sqliteadapter "github.com/ericfisherdev/killsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/killsync/internal/application"
	"github.com/ericfisherdev/killsync/internal/config"
	"github.com/ericfisherdev/killsync/internal/domain/port/driven"
	"github.com/ericfisherdev/killsync/internal/logging"
)

// errShardBusy is returned when another worker holds the shard lock.
var errShardBusy = errors.New("shard busy")

func main() {
	if err := run(os.Args[1:]); err != nil {
		switch {
		case errors.Is(err, pflag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, errShardBusy):
			slog.Info("shard busy, exiting")
			os.Exit(0)
		}
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type options struct {
	shard  int
	shards int
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("fetchkilllog", pflag.ContinueOnError)
	fs.IntVar(&opts.shard, "shard", -1, "shard index to poll")
	fs.IntVar(&opts.shards, "shards", 0, "total shard count (default: the stored fetchesPerSecond)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.shard < 0 {
		return opts, errors.New("--shard is required")
	}
	if opts.shards < 0 || (opts.shards > 0 && opts.shard >= opts.shards) {
		return opts, fmt.Errorf("--shard %d out of range for --shards %d", opts.shard, opts.shards)
	}
	return opts, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, cfg.LogLevel, os.Getenv("NO_COLOR") != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	credentialStore := sqliteadapter.NewCredentialRepo(db)
	characterStore := sqliteadapter.NewCharacterRepo(db)
	settings := application.NewSettings(sqliteadapter.NewStorageRepo(db))
	api := eveapi.NewClient(cfg.APIBaseURL, cfg.APITimeout)

	if opts.shards == 0 {
		if opts.shards, err = settings.ShardCount(ctx); err != nil {
			return err
		}
		if opts.shard >= opts.shards {
			return fmt.Errorf("--shard %d out of range for %d shards", opts.shard, opts.shards)
		}
	}

	// The in-process locker cannot exclude the daemon; without Redis this
	// command relies on being the only poller of the shard.
	var locker driven.ShardLocker = application.NewLocalShardLocker()
	if cfg.HasRedis() {
		redisLocker, err := redislock.New(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			return err
		}
		defer func() { _ = redisLocker.Close() }()
		locker = redisLocker
	}

	unlock, ok, err := locker.Acquire(ctx, opts.shard, cfg.LockWait)
	if err != nil {
		return err
	}
	if !ok {
		return errShardBusy
	}
	defer unlock()

	mutator := application.NewStateMutator(credentialStore, characterStore, settings)
	worker := application.NewFetchWorker(
		credentialStore,
		characterStore,
		api,
		application.NewAccessGate(api),
		settings,
		application.NewKillmailIngester(sqliteadapter.NewKillmailRepo(db)),
		mutator,
		0,
	)

	report, err := worker.Run(ctx, opts.shard, opts.shards)
	if err != nil {
		return err
	}
	if report.Stopped {
		slog.Info("api stop active", "shard", opts.shard)
	}
	return nil
}
