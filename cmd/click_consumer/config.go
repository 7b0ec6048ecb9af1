package main

import (
	"errors"
	"strings"
	"time"

	appconfig "github.com/IgorGrieder/shortlink-analytics/internal/config"
)

type config struct {
	appEnv       string
	appName      string
	appVersion   string
	logLevel     string
	otelEnabled  bool
	otelEndpoint string
	postgresDSN  string

	kafkaBrokers []string
	kafkaTopic   string
	kafkaGroupID string

	fetchMaxWait   time.Duration
	operationTTL   time.Duration
	consumeBackoff time.Duration
}

func loadConfig() (config, error) {
	cfg := config{
		appEnv:         appconfig.GetEnv("APP_ENV", "production"),
		appName:        appconfig.GetEnv("APP_NAME", "shortlink-analytics"),
		appVersion:     appconfig.GetEnv("APP_VERSION", "0.1.0"),
		logLevel:       appconfig.GetEnv("LOG_LEVEL", "info"),
		otelEnabled:    appconfig.GetEnvBool("OTEL_ENABLED", false),
		otelEndpoint:   appconfig.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://jaeger:4318"),
		postgresDSN:    appconfig.GetEnv("DB_DSN", appconfig.LoadPostgres().DSN()),
		kafkaBrokers:   appconfig.SplitCSV(appconfig.GetEnv("KAFKA_BROKERS", "kafka:9092")),
		kafkaTopic:     appconfig.GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		kafkaGroupID:   appconfig.GetEnv("KAFKA_CLICK_GROUP_ID", "click-analytics"),
		fetchMaxWait:   appconfig.GetEnvDuration("KAFKA_CONSUMER_MAX_WAIT", 500*time.Millisecond),
		operationTTL:   appconfig.GetEnvDuration("KAFKA_CONSUMER_OPERATION_TIMEOUT", 5*time.Second),
		consumeBackoff: appconfig.GetEnvDuration("KAFKA_CONSUMER_BACKOFF", 500*time.Millisecond),
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
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
	if strings.TrimSpace(c.kafkaGroupID) == "" {
		errs = append(errs, errors.New("KAFKA_CLICK_GROUP_ID must not be empty"))
	}
	if c.operationTTL <= 0 {
		errs = append(errs, errors.New("KAFKA_CONSUMER_OPERATION_TIMEOUT must be > 0"))
	}
	if c.consumeBackoff <= 0 {
		errs = append(errs, errors.New("KAFKA_CONSUMER_BACKOFF must be > 0"))
	}
	return errors.Join(errs...)
}
