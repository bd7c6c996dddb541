package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

const (
	ServiceName    = "warehouse-fulfillment"
	ServiceVersion = "0.1.0"
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Config is decoded from the process environment; keys are the env var names.
type Config struct {
	Port string `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBLogLevel  string `mapstructure:"DB_LOG_LEVEL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	ItemCacheTTL  time.Duration `mapstructure:"ITEM_CACHE_TTL"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	OtelEndpoint   string `mapstructure:"OTEL_ENDPOINT"`
	OtelAuthHeader string `mapstructure:"OTEL_AUTH_HEADER"`

	CapacityRepairSchedule string        `mapstructure:"CAPACITY_REPAIR_SCHEDULE"`
	NearFullThreshold      float64       `mapstructure:"NEAR_FULL_THRESHOLD"`
	ConflictRetries        int           `mapstructure:"CONFLICT_RETRIES"`
	ConflictBackoff        time.Duration `mapstructure:"CONFLICT_BACKOFF"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"PORT":                     "3000",
		"DB_DRIVER":                "postgres",
		"DB_LOG_LEVEL":             "warn",
		"KAFKA_TOPIC":              "warehouse.fulfillment",
		"ITEM_CACHE_TTL":           "10m",
		"CAPACITY_REPAIR_SCHEDULE": "@every 1h",
		"NEAR_FULL_THRESHOLD":      "0.9",
		"CONFLICT_RETRIES":         "3",
		"CONFLICT_BACKOFF":         "25ms",
		"LOG_LEVEL":                "info",
	}
}

// Load reads .env when present and decodes the environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	return FromEnv(os.Environ())
}

// FromEnv decodes KEY=VALUE pairs on top of the defaults.
func FromEnv(environ []string) (*Config, error) {
	input := defaults()
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		input[key] = value
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, mysql or sqlite, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" && c.DBDriver != "postgres" {
		return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", c.DBDriver)
	}
	if c.NearFullThreshold <= 0 || c.NearFullThreshold > 1 {
		return fmt.Errorf("NEAR_FULL_THRESHOLD must be in (0, 1], got %v", c.NearFullThreshold)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1, got %d", c.ConflictRetries)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether events should also go to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// OtelEnabled reports whether OTLP export is configured.
func (c *Config) OtelEnabled() bool {
	return c.OtelEndpoint != ""
}
