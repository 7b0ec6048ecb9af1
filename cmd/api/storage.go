package main

import (
	"context"
	"fmt"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/config"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
	"github.com/IgorGrieder/shortlink-analytics/internal/storage/memory"
	mongoStorage "github.com/IgorGrieder/shortlink-analytics/internal/storage/mongo"
	postgresStorage "github.com/IgorGrieder/shortlink-analytics/internal/storage/postgres"
	"github.com/IgorGrieder/shortlink-analytics/internal/storage/postgres/migrations"
	redisStorage "github.com/IgorGrieder/shortlink-analytics/internal/storage/redis"
	httpTransport "github.com/IgorGrieder/shortlink-analytics/internal/transport/http"
	"go.uber.org/zap"
)

// storage is the set of repositories the API runs on, plus the hooks main
// needs for health checks and shutdown.
type storage struct {
	links  links.LinkRepository
	clicks links.ClickRepository
	outbox links.ClickOutboxRepository

	checks  map[string]httpTransport.HealthCheck
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func initStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	var (
		st  *storage
		err error
	)
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres:
		st, err = initPostgres(ctx, cfg)
	case config.StorageBackendMongo:
		st, err = initMongo(ctx, cfg)
	case config.StorageBackendMemory:
		linkRepo := memory.NewLinksRepository()
		st = &storage{
			links:  linkRepo,
			clicks: memory.NewClicksRepository(linkRepo),
			checks: map[string]httpTransport.HealthCheck{},
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := redisStorage.New(ctx, redisStorage.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st.links = redisStorage.NewCachedLinkRepository(st.links, client, cfg.Redis.CacheTTL, nil)
		st.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.closers = append(st.closers, func() { _ = client.Close() })
	}

	logger.Info("Storage backend selected",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("click_mode", cfg.Shortener.ClickMode),
		zap.Bool("link_cache", cfg.Redis.Enabled),
	)
	return st, nil
}

func initPostgres(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Postgres.RunMigrations {
		if err := migrations.Run(cfg.Postgres.URL(), logger.Named("migrations")); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pgConn, err := db.ConnectPostgres(ctx, cfg.Postgres.DSN(), db.PostgresOptions{MaxConnLifetime: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	linkRepo, err := postgresStorage.NewLinksRepository(pgConn)
	if err != nil {
		pgConn.Close()
		return nil, fmt.Errorf("init postgres links repository: %w", err)
	}
	clickRepo, err := postgresStorage.NewClicksRepository(pgConn)
	if err != nil {
		pgConn.Close()
		return nil, fmt.Errorf("init postgres clicks repository: %w", err)
	}

	st := &storage{
		links:   linkRepo,
		clicks:  clickRepo,
		checks:  map[string]httpTransport.HealthCheck{"postgres": pgConn.Ping},
		closers: []func(){pgConn.Close},
	}

	if cfg.Shortener.ClickMode == config.ClickModeOutbox {
		outboxRepo, err := postgresStorage.NewClickOutboxRepository(pgConn)
		if err != nil {
			pgConn.Close()
			return nil, fmt.Errorf("init postgres outbox repository: %w", err)
		}
		st.outbox = outboxRepo
	}
	return st, nil
}

func initMongo(ctx context.Context, cfg *config.Config) (*storage, error) {
	mongoConn, err := db.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, db.MongoOptions{
		AppName:     cfg.App.Name,
		MaxPoolSize: cfg.MongoDB.MaxPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	logger.Info("MongoDB connected", zap.String("database", cfg.MongoDB.Database))
	disconnect := mongoConn.Close

	linkRepo, err := mongoStorage.NewLinksRepository(mongoConn)
	if err != nil {
		disconnect()
		return nil, fmt.Errorf("init mongo links repository: %w", err)
	}
	clickRepo, err := mongoStorage.NewClicksRepository(mongoConn)
	if err != nil {
		disconnect()
		return nil, fmt.Errorf("init mongo clicks repository: %w", err)
	}

	return &storage{
		links:   linkRepo,
		clicks:  clickRepo,
		checks:  map[string]httpTransport.HealthCheck{"mongodb": mongoConn.Ping},
		closers: []func(){disconnect},
	}, nil
}
