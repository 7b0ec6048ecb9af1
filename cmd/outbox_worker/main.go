package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/db"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/logger"
	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/telemetry"
	postgresStorage "github.com/IgorGrieder/shortlink-analytics/internal/storage/postgres"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.appEnv, cfg.logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	shutdownTracer := initTracing(cfg)
	defer shutdownTracer()

	pgConn, err := db.ConnectPostgres(context.Background(), cfg.postgresDSN, db.PostgresOptions{})
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgConn.Close()

	outboxRepo, err := postgresStorage.NewClickOutboxRepository(pgConn)
	if err != nil {
		logger.Fatal("failed to initialize outbox repository", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.kafkaBrokers...),
		Topic:                  cfg.kafkaTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Warn("failed to close kafka writer", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("outbox worker started",
		zap.Strings("kafka_brokers", cfg.kafkaBrokers),
		zap.String("kafka_topic", cfg.kafkaTopic),
		zap.String("worker_id", cfg.workerID),
		zap.Int("batch_size", cfg.batchSize),
		zap.Duration("poll_interval", cfg.pollInterval),
		zap.Duration("claim_lease", cfg.claimLease),
	)

	newRelay(outboxRepo, writer, cfg).run(ctx)
	logger.Info("outbox worker stopped")
}

// initTracing falls back to propagation only, so trace headers stored on
// outbox rows still reach Kafka when export is off.
func initTracing(cfg workerConfig) func() {
	telemetry.SetupPropagator()
	if !cfg.otelEnabled {
		return func() {}
	}

	serviceName := cfg.appName + "-outbox-worker"
	shutdown, err := telemetry.InitTracer(telemetry.Options{
		Endpoint:       cfg.otelEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: cfg.appVersion,
		Environment:    cfg.appEnv,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		return func() {}
	}
	logger.Info("OpenTelemetry tracer initialized",
		zap.String("endpoint", cfg.otelEndpoint),
		zap.String("service", serviceName),
	)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("failed to shutdown tracer", zap.Error(err))
		}
	}
}
