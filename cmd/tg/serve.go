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

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/toggles/internal/analytics"
	"github.com/alfredjeanlab/toggles/internal/config"
	"github.com/alfredjeanlab/toggles/internal/events"
	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/hooks"
	"github.com/alfredjeanlab/toggles/internal/metrics"
	"github.com/alfredjeanlab/toggles/internal/remote"
	"github.com/alfredjeanlab/toggles/internal/server"
	"github.com/alfredjeanlab/toggles/internal/storage"
	"github.com/alfredjeanlab/toggles/internal/storage/bolt"
	"github.com/alfredjeanlab/toggles/internal/storage/postgres"
	flagsync "github.com/alfredjeanlab/toggles/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the toggles server",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		ctx, stop := signalContext()
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openStorage opens the configured backend. The returned func releases it
// and is never nil on success.
func openStorage(cfg *config.Config) (storage.KV, func() error, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemory(), func() error { return nil }, nil
	case config.StorageBolt:
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoragePostgres:
		s, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

// syncDestinations builds every configured snapshot destination. A
// destination that fails to start is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []flagsync.Destination {
	var dests []flagsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := flagsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, flagsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	return dests
}

// newRemoteClient builds the remote flags client from the provider's API
// endpoint. It returns nil when no base URL is configured.
func newRemoteClient(p flags.ConfigProvider, cfg *config.Config) *remote.Client {
	baseURL, version := p.APIEndpoint()
	if baseURL == "" {
		return nil
	}
	return remote.NewClient(baseURL, version,
		remote.WithPath(cfg.RemotePath),
		remote.WithTimeout(cfg.RemoteTimeout))
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	kv, closeStorage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Error("error closing storage", "err", err)
		}
	}()
	logger.Info("storage opened", "backend", cfg.Storage)

	provider, err := config.NewProvider(cfg)
	if err != nil {
		return err
	}

	tracker := analytics.New(cfg.Analytics, analytics.WithLogger(logger))
	tracker.StartReaper(nil)
	defer tracker.Stop()

	opts := []flags.Option{
		flags.WithLogger(logger),
		flags.WithStorage(kv),
		flags.WithConfig(provider),
		flags.WithAnalytics(tracker),
	}
	remoteClient := newRemoteClient(provider, cfg)
	if remoteClient != nil {
		opts = append(opts, flags.WithRemote(remoteClient))
		logger.Info("remote flags enabled", "url", remoteClient.URL())
	}
	engine := flags.New(opts...)
	if err := engine.Initialize(ctx); err != nil {
		return err
	}
	defer engine.Cleanup()

	var publisher events.Publisher = &events.NoopPublisher{}
	var subscriber events.Subscriber = &events.NoopSubscriber{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		publisher = pub
		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			pub.Close()
			return err
		}
		subscriber = sub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("events disabled (TOGGLES_NATS_URL not set)")
	}
	defer func() {
		if err := subscriber.Close(); err != nil {
			logger.Error("error closing subscriber", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()

	fanout := []events.Publisher{publisher}
	if cfg.HooksFile != "" {
		hookList, err := hooks.LoadFile(cfg.HooksFile)
		if err != nil {
			return err
		}
		handler := hooks.NewHandler(hookList, logger)
		defer handler.Close()
		fanout = append(fanout, handler)
		logger.Info("flag hooks enabled", "count", len(hookList))
	}

	httpMetrics := metrics.NewHTTPMetrics()
	srvOpts := server.Options{
		AuthToken: cfg.AuthToken,
		Publisher: events.NewMultiPublisher(fanout...),
		Usage:     tracker,
		Metrics:   httpMetrics,
		Registry:  metrics.NewRegistry(engine, httpMetrics),
		Logger:    logger,
	}

	var srv *server.Server
	var scheduler *flagsync.Scheduler
	dests := syncDestinations(ctx, cfg, logger)
	if len(dests) > 0 || remoteClient != nil {
		scheduler = flagsync.NewScheduler(engine, dests, cfg.SyncInterval, logger,
			flagsync.WithRemoteRefresh(cfg.Environment == flags.EnvironmentProduction),
			flagsync.WithOnSync(func(res flagsync.Result) {
				if res.Refreshed {
					srv.Emit(events.TopicFlagsSynced, &events.FlagsSynced{Count: engine.Len(), LastSync: res.LastSync})
				}
			}))
		srvOpts.Syncer = scheduler
	}

	srv = server.New(engine, srvOpts)
	defer srv.Close()

	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()
		if err := scheduler.WatchRefresh(watchCtx, subscriber); err != nil {
			logger.Error("failed to watch refresh requests", "err", err)
		}
		logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
	}

	logger.Info("toggles server started",
		"env", cfg.Environment,
		"http_addr", cfg.HTTPAddr,
		"flags", engine.Len())

	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
