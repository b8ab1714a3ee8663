package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/provider"
)

type Config struct {
	DatabaseURL string

	TLDSourceURL string
	TLDFile      string
	TLDRequired  bool
	TLDClient    provider.ResilientClientConfig

	RESTPort       string
	RESTListenHost string
	RESTAuthToken  string
	StatsCacheTTL  time.Duration

	NATSURL     string
	NATSSubject string
	NATSQueue   string

	LogLevel  string
	LogFormat string
}

// ListenAddr is the REST server bind address.
func (c *Config) ListenAddr() string {
	return c.RESTListenHost + ":" + c.RESTPort
}

// Load reads an optional .env file and then the environment. Malformed
// numeric or boolean values are reported, never silently replaced.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVar := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	client := provider.DefaultResilientClientConfig()
	client.MaxRetries = intVar("TLD_RETRY_MAX_ATTEMPTS", client.MaxRetries)
	client.InitialInterval = time.Duration(intVar("TLD_RETRY_INITIAL_INTERVAL_MS", 500)) * time.Millisecond
	client.MaxInterval = time.Duration(intVar("TLD_RETRY_MAX_INTERVAL_MS", 5000)) * time.Millisecond
	client.EnableCircuitBreaker = boolVar("TLD_CIRCUIT_BREAKER_ENABLED", true)
	client.MaxFailures = uint32(intVar("TLD_CIRCUIT_BREAKER_MAX_FAILURES", int(client.MaxFailures)))

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", "ioc_database.db"),
		TLDSourceURL:   getEnv("TLD_SOURCE_URL", provider.DefaultIANATLDURL),
		TLDFile:        os.Getenv("TLD_FILE"),
		TLDRequired:    boolVar("TLD_REQUIRED", true),
		TLDClient:      client,
		RESTPort:       getEnv("REST_API_PORT", "8080"),
		RESTListenHost: getEnv("REST_API_LISTEN_HOST", "localhost"),
		RESTAuthToken:  os.Getenv("REST_API_AUTH_TOKEN"),
		StatsCacheTTL:  time.Duration(intVar("STATS_CACHE_TTL_SECONDS", 5)) * time.Second,
		NATSURL:        os.Getenv("NATS_URL"),
		NATSSubject:    getEnv("NATS_SUBJECT", "watchtower.messages"),
		NATSQueue:      getEnv("NATS_QUEUE", "watchtower"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	if cfg.TLDClient.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("TLD_RETRY_MAX_ATTEMPTS must not be negative"))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a boolean", key, raw)
	}
	return v, nil
}
