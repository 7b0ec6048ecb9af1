package main

import (
	"errors"
	"strings"
	"time"

	"github.com/IgorGrieder/shortlink-analytics/internal/config"
)

type workerConfig struct {
	appEnv       string
	appName      string
	appVersion   string
	logLevel     string
	otelEnabled  bool
	otelEndpoint string
	postgresDSN  string

	kafkaBrokers []string
	kafkaTopic   string
	workerID     string

	pollInterval time.Duration
	batchSize    int
	writeTimeout time.Duration
	retryBase    time.Duration
	retryMax     time.Duration
	claimLease   time.Duration
}

func loadConfig() (workerConfig, error) {
	cfg := workerConfig{
		appEnv:       config.GetEnv("APP_ENV", "production"),
		appName:      config.GetEnv("APP_NAME", "shortlink-analytics"),
		appVersion:   config.GetEnv("APP_VERSION", "0.1.0"),
		logLevel:     config.GetEnv("LOG_LEVEL", "info"),
		otelEnabled:  config.GetEnvBool("OTEL_ENABLED", false),
		otelEndpoint: config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://jaeger:4318"),
		postgresDSN:  config.GetEnv("DB_DSN", config.LoadPostgres().DSN()),
		kafkaBrokers: config.SplitCSV(config.GetEnv("KAFKA_BROKERS", "kafka:9092")),
		kafkaTopic:   config.GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		workerID:     config.GetEnv("OUTBOX_WORKER_ID", config.DefaultWorkerID("outbox-worker")),
		pollInterval: config.GetEnvDuration("OUTBOX_POLL_INTERVAL", 250*time.Millisecond),
		batchSize:    config.GetEnvInt("OUTBOX_BATCH_SIZE", 200),
		writeTimeout: config.GetEnvDuration("OUTBOX_WRITE_TIMEOUT", 5*time.Second),
		retryBase:    config.GetEnvDuration("OUTBOX_RETRY_BASE_DELAY", time.Second),
		retryMax:     config.GetEnvDuration("OUTBOX_RETRY_MAX_DELAY", 30*time.Second),
		claimLease:   config.GetEnvDuration("OUTBOX_CLAIM_LEASE", 30*time.Second),
	}
	return cfg, cfg.validate()
}

func (c workerConfig) validate() error {
	var errs []error
	if strings.TrimSpace(c.postgresDSN) == "" {
		errs = append(errs, errors.New("DB_DSN must not be empty"))
	}
	if len(c.kafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must contain at least one broker"))
	}
	if strings.TrimSpace(c.kafkaTopic) == "" {
		errs = append(errs, errors.New("KAFKA_CLICK_TOPIC must not be empty"))
	}
	if strings.TrimSpace(c.workerID) == "" {
		errs = append(errs, errors.New("OUTBOX_WORKER_ID must not be empty"))
	}
	if c.batchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be > 0"))
	}
	for name, d := range map[string]time.Duration{
		"OUTBOX_POLL_INTERVAL":    c.pollInterval,
		"OUTBOX_WRITE_TIMEOUT":    c.writeTimeout,
		"OUTBOX_RETRY_BASE_DELAY": c.retryBase,
		"OUTBOX_CLAIM_LEASE":      c.claimLease,
	} {
		if d <= 0 {
			errs = append(errs, errors.New(name+" must be > 0"))
		}
	}
	if c.retryMax < c.retryBase {
		errs = append(errs, errors.New("OUTBOX_RETRY_MAX_DELAY must be >= OUTBOX_RETRY_BASE_DELAY"))
	}
	return errors.Join(errs...)
}
