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

	processor, err := postgresStorage.NewClickEventProcessor(pgConn)
	if err != nil {
		logger.Fatal("failed to initialize click event processor", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.kafkaBrokers,
		Topic:       cfg.kafkaTopic,
		GroupID:     cfg.kafkaGroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.fetchMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("click consumer started",
		zap.Strings("kafka_brokers", cfg.kafkaBrokers),
		zap.String("kafka_topic", cfg.kafkaTopic),
		zap.String("kafka_group", cfg.kafkaGroupID),
	)

	newConsumer(reader, processor, cfg).run(ctx)
	logger.Info("click consumer stopped")
}

func initTracing(cfg config) func() {
	telemetry.SetupPropagator()
	if !cfg.otelEnabled {
		return func() {}
	}

	serviceName := cfg.appName + "-click-consumer"
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
