package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"video_ingestor/internal/config"
	"video_ingestor/internal/coordination"
	"video_ingestor/internal/metrics"
	"video_ingestor/internal/publisher"
	"video_ingestor/internal/service"
	"video_ingestor/internal/source/youtube"
	"video_ingestor/internal/storage/postgres"
)

// components holds everything a command needs, plus what must be closed.
type components struct {
	db       *sqlx.DB
	videos   *postgres.VideoStore
	service  *service.IngestService
	registry *prometheus.Registry
	closers  []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}

func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	db, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	c := &components{db: db, closers: []func() error{db.Close}}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, rabbitMQ.Close)
		pub = rabbitMQ
	}

	var lock service.RunLock
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			c.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		lock = coordination.NewRunLock(client, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		logger.Info("connected to redis", "addr", cfg.Redis.Addr, "lock_key", cfg.Redis.LockKey)
	} else {
		lock = coordination.NewLocalLock()
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	source := youtube.New(youtube.Config{
		BaseURL:           cfg.YouTube.BaseURL,
		RegionCode:        cfg.YouTube.RegionCode,
		RelevanceLanguage: cfg.YouTube.RelevanceLanguage,
		PageSize:          cfg.YouTube.PageSize,
		Timeout:           cfg.YouTube.Timeout,
		MaxAttempts:       cfg.YouTube.Retry.MaxAttempts,
		InitialBackoff:    cfg.YouTube.Retry.InitialBackoff,
		MaxBackoff:        cfg.YouTube.Retry.MaxBackoff,
	}, logger)

	c.videos = postgres.NewVideoStore(db)
	c.service = service.NewIngestService(
		source,
		postgres.NewAPIKeyStore(db),
		c.videos,
		postgres.NewCategoryStore(db),
		postgres.NewIngestStateStore(db),
		postgres.NewTxRunner(db),
		pub,
		lock,
		metrics.New(c.registry),
		logger,
		cfg.Ingest,
	)

	return c, nil
}
