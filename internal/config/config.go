package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMongo    = "mongo"
	StorageBackendMemory   = "memory"

	ClickModeSync   = "sync"
	ClickModeOutbox = "outbox"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Shortener ShortenerConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port              string
	Host              string
	TrustProxyHeaders bool
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

type StorageConfig struct {
	Backend string
}

type PostgresConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Database      string
	SSLMode       string
	RunMigrations bool
}

// DSN returns a key/value connection string for pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// URL returns the postgres:// form the migration driver expects.
func (p PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type MongoDBConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type ShortenerConfig struct {
	BaseURL               string
	CodeLength            int
	RedirectStatus        int // 301, 302 or 307
	MaxAllocationAttempts int
	ClickMode             string
	ClickTimeout          time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "shortlink-analytics"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:              GetEnv("APP_PORT", "8080"),
			Host:              GetEnv("APP_HOST", "localhost"),
			TrustProxyHeaders: GetEnvBool("TRUST_PROXY_HEADERS", false),
			AllowedOrigins:    SplitCSV(GetEnv("CORS_ALLOWED_ORIGINS", "")),
			ReadTimeout:       GetEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      GetEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:   GetEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(GetEnv("STORAGE_BACKEND", StorageBackendPostgres)),
		},
		Postgres: LoadPostgres(),
		MongoDB: MongoDBConfig{
			URI:         GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:    GetEnv("MONGODB_DATABASE", "shortlink"),
			MaxPoolSize: uint64(max(GetEnvInt("MONGODB_MAX_POOL_SIZE", 50), 0)),
		},
		Redis: RedisConfig{
			Enabled:  GetEnvBool("REDIS_CACHE_ENABLED", false),
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
			CacheTTL: GetEnvDuration("REDIS_CACHE_TTL", time.Hour),
		},
		Shortener: ShortenerConfig{
			BaseURL:               strings.TrimRight(GetEnv("SHORTENER_BASE_URL", "http://localhost:8080"), "/"),
			CodeLength:            GetEnvInt("CODE_LENGTH", 6),
			RedirectStatus:        GetEnvInt("REDIRECT_STATUS", 307),
			MaxAllocationAttempts: GetEnvInt("ALLOCATION_MAX_ATTEMPTS", 10),
			ClickMode:             strings.ToLower(GetEnv("CLICK_MODE", ClickModeSync)),
			ClickTimeout:          GetEnvDuration("CLICK_RECORD_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
			GroupID: GetEnv("KAFKA_CLICK_GROUP_ID", "click-analytics"),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Shortener.RedirectStatus {
	case 301, 302, 307:
	default:
		return fmt.Errorf("REDIRECT_STATUS must be 301, 302 or 307 (got %d)", c.Shortener.RedirectStatus)
	}
	if c.Shortener.CodeLength < 4 || c.Shortener.CodeLength > 32 {
		return fmt.Errorf("CODE_LENGTH must be between 4 and 32 (got %d)", c.Shortener.CodeLength)
	}
	if c.Shortener.MaxAllocationAttempts <= 0 {
		return fmt.Errorf("ALLOCATION_MAX_ATTEMPTS must be > 0 (got %d)", c.Shortener.MaxAllocationAttempts)
	}
	if c.Shortener.ClickTimeout <= 0 {
		return fmt.Errorf("CLICK_RECORD_TIMEOUT must be > 0")
	}

	backends := []string{StorageBackendPostgres, StorageBackendMongo, StorageBackendMemory}
	if !slices.Contains(backends, c.Storage.Backend) {
		return fmt.Errorf("STORAGE_BACKEND must be one of %s (got %q)", strings.Join(backends, ", "), c.Storage.Backend)
	}

	switch c.Shortener.ClickMode {
	case ClickModeSync:
	case ClickModeOutbox:
		if c.Storage.Backend != StorageBackendPostgres {
			return fmt.Errorf("CLICK_MODE=outbox requires STORAGE_BACKEND=postgres (got %q)", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("CLICK_MODE must be %q or %q (got %q)", ClickModeSync, ClickModeOutbox, c.Shortener.ClickMode)
	}

	if c.Redis.Enabled && c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("REDIS_CACHE_TTL must be > 0 when the cache is enabled")
	}

	return nil
}
