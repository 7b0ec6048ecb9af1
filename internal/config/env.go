package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

// parseOr returns fallback when key is unset, blank, or fails to parse.
func parseOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := lookup(key)
	if !ok {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

// GetEnv returns the trimmed value of key, or fallback when it is blank.
func GetEnv(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	return parseOr(key, fallback, strconv.Atoi)
}

func GetEnvBool(key string, fallback bool) bool {
	return parseOr(key, fallback, strconv.ParseBool)
}

func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	return parseOr(key, fallback, time.ParseDuration)
}

// SplitCSV splits on commas and drops blank entries.
func SplitCSV(raw string) []string {
	out := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadPostgres reads only the DB_* variables. The workers use it so they do
// not depend on the HTTP settings.
func LoadPostgres() PostgresConfig {
	return PostgresConfig{
		Host:          GetEnv("DB_HOST", "localhost"),
		Port:          GetEnv("DB_PORT", "5432"),
		User:          GetEnv("DB_USER", "postgres"),
		Password:      GetEnv("DB_PASSWORD", "postgres"),
		Database:      GetEnv("DB_NAME", "shortlink"),
		SSLMode:       GetEnv("DB_SSL_MODE", "disable"),
		RunMigrations: GetEnvBool("DB_RUN_MIGRATIONS", true),
	}
}

// DefaultWorkerID returns a worker identifier built from the hostname and PID.
// fallbackName is used when the hostname cannot be determined.
func DefaultWorkerID(fallbackName string) string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = fallbackName
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
