// crawld is the asynchronous URL crawl service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/crawlkit/crawld/internal/api"
	artifactgcs "github.com/crawlkit/crawld/internal/artifact/gcs"
	artifactmemory "github.com/crawlkit/crawld/internal/artifact/memory"
	artifacttoken "github.com/crawlkit/crawld/internal/artifact/token"
	clocksystem "github.com/crawlkit/crawld/internal/clock/system"
	"github.com/crawlkit/crawld/internal/config"
	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/dispatcher"
	fetchercolly "github.com/crawlkit/crawld/internal/fetcher/colly"
	"github.com/crawlkit/crawld/internal/hash/sha256"
	idgen "github.com/crawlkit/crawld/internal/id/uuid"
	"github.com/crawlkit/crawld/internal/logging"
	"github.com/crawlkit/crawld/internal/metrics"
	publisherpubsub "github.com/crawlkit/crawld/internal/publisher/pubsub"
	queuememory "github.com/crawlkit/crawld/internal/queue/memory"
	queueredis "github.com/crawlkit/crawld/internal/queue/redis"
	"github.com/crawlkit/crawld/internal/service"
	storagememory "github.com/crawlkit/crawld/internal/storage/memory"
	storagepostgres "github.com/crawlkit/crawld/internal/storage/postgres"
	"github.com/crawlkit/crawld/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "crawld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildRecordStore(ctx, cfg)
	if err != nil {
		return err
	}

	queue, err := buildQueue(ctx, cfg)
	if err != nil {
		return err
	}

	artifacts, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	var publisher crawl.Publisher
	if cfg.PubSub.TopicName != "" {
		p, err := publisherpubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		defer func() { _ = p.Close() }()
		publisher = p
	}

	fetcher := fetchercolly.New(fetchercolly.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
	})

	clock := clocksystem.New()
	ids := idgen.New()

	workerCfg := worker.Config{
		ContentType:  cfg.Artifacts.ContentType,
		BlobPrefix:   cfg.Artifacts.Prefix,
		Topic:        cfg.PubSub.TopicName,
		FetchTimeout: cfg.FetchTimeout(),
	}
	workers := make([]*worker.Worker, 0, cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(queue, store, artifacts, publisher, fetcher, clock, workerCfg, logger))
	}

	d := dispatcher.New(queue, ids, clock, workers)
	svc := service.New(store, d, sha256.New(), ids, clock, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(svc, cfg, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go d.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.Int("workers", cfg.Worker.Concurrency),
			zap.String("db", cfg.DB.Provider),
			zap.String("queue", cfg.Queue.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildRecordStore(ctx context.Context, cfg config.Config) (crawl.RecordStore, error) {
	switch cfg.DB.Provider {
	case "memory":
		return storagememory.NewRecordStore(), nil
	case "postgres":
		store, err := storagepostgres.NewRecordStore(ctx, storagepostgres.RecordStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (crawl.Queue, error) {
	switch cfg.Queue.Provider {
	case "memory":
		return queuememory.NewQueue(cfg.Queue.Depth), nil
	case "redis":
		queue, err := queueredis.NewQueue(ctx, queueredis.Config{
			Addr:     cfg.Queue.Redis.Addr,
			Password: cfg.Queue.Redis.Password,
			DB:       cfg.Queue.Redis.DB,
			Key:      cfg.Queue.Redis.Key,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis queue: %w", err)
		}
		return queue, nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Queue.Provider)
	}
}

func buildArtifactStore(ctx context.Context, cfg config.Config) (crawl.ArtifactStore, error) {
	switch cfg.Artifacts.Provider {
	case "token":
		return artifacttoken.New(), nil
	case "memory":
		return artifactmemory.New(), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := artifactgcs.New(client, artifactgcs.Config{Bucket: cfg.Artifacts.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown artifacts provider %q", cfg.Artifacts.Provider)
	}
}
