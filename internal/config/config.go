// Package config loads the ledger service configuration from environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	Store       StoreConfig
	Kafka       KafkaConfig
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	Driver       string
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
}

// KafkaConfig configures event publishing. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is loaded if present; a custom path
// may be given instead, in which case it must exist.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	maxOpen, err := parseIntEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := parseIntEnv("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}
	shutdown, err := parseDurationEnv("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnvOrDefault("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Addr:            getEnvOrDefault("HTTP_ADDR", ":8080"),
			ShutdownTimeout: shutdown,
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMemory)),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxIdle,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "ledger.transaction_committed"),
		},
	}

	return cfg, nil
}

// Validate checks that the settings required by the selected backends are present.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.HTTP.Addr == "" {
		problems = append(problems, "HTTP_ADDR must not be empty")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		problems = append(problems, "KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
