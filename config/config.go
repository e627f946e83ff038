// Package config holds all configuration for the tutor mesh worker,
// loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Distributed state backend (Redis)
	State StateConfig

	// Mastery history (PostgreSQL)
	Database DatabaseConfig

	// Event broker (Kafka)
	Events EventsConfig

	// Observability HTTP surface
	HTTP HTTPConfig

	// Feature flags
	Features *FeatureFlags

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// StateConfig holds distributed state backend settings.
type StateConfig struct {
	// BackendEnabled selects backed mode (Redis) over local in-memory
	// mode. Local mode does not survive process restarts.
	BackendEnabled bool

	Host     string
	Port     int
	Password string
	DB       int

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OpTimeout bounds each state call made by the pipeline.
	OpTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings for the mastery history.
// An empty URL selects the in-memory history fallback.
type DatabaseConfig struct {
	URL string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
}

// EventsConfig holds event broker settings.
type EventsConfig struct {
	// Enabled toggles the broker subscription; disabled mode is a no-op
	// consumer used in tests and broker-less environments.
	Enabled bool

	// Brokers is a comma-separated list in the environment.
	Brokers []string

	// Topic is the learning events topic.
	Topic string

	// GroupID is the consumer group.
	GroupID string

	// Workers is the number of concurrent consumer tasks.
	Workers int

	// DeadLetterEnabled toggles the dead-letter producer; when off,
	// unprocessable messages are dropped with a log line.
	DeadLetterEnabled bool

	// ProcessTimeout bounds one event's processing.
	ProcessTimeout time.Duration

	// ConnectAttempts bounds the startup broker probe.
	ConnectAttempts int
}

// HTTPConfig holds the observability server settings.
type HTTPConfig struct {
	Addr string

	// Agents maps agent name to base URL for the per-agent health probe.
	// Environment format: "progress=http://progress:8081,debug=http://debug:8082"
	Agents map[string]string

	// ProbeTimeout bounds one agent health probe.
	ProbeTimeout time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		State:         loadStateConfig(),
		Database:      loadDatabaseConfig(),
		Events:        loadEventsConfig(),
		HTTP:          loadHTTPConfig(),
		Features:      LoadFeatureFlags(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	return AppConfig{
		Name:            getEnv("APP_NAME", "tutormesh-progress"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStateConfig() StateConfig {
	return StateConfig{
		BackendEnabled: getEnvBool("STATE_BACKEND_ENABLED", false),
		Host:           getEnv("REDIS_HOST", "localhost"),
		Port:           getEnvInt("REDIS_PORT", 6379),
		Password:       getEnv("REDIS_PASSWORD", ""),
		DB:             getEnvInt("REDIS_DB", 0),
		PoolSize:       getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:   getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:    getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:    getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:   getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		OpTimeout:      getEnvDuration("STATE_OP_TIMEOUT", 3*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
		MinConns:        int32(getEnvInt("DB_MIN_CONNS", 2)),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
	}
}

func loadEventsConfig() EventsConfig {
	return EventsConfig{
		Enabled:           getEnvBool("EVENTS_ENABLED", false),
		Brokers:           getEnvStringSlice("KAFKA_BROKERS", nil),
		Topic:             getEnv("KAFKA_TOPIC", "learning.events"),
		GroupID:           getEnv("KAFKA_GROUP_ID", "progress-agent"),
		Workers:           getEnvInt("CONSUMER_WORKERS", 4),
		DeadLetterEnabled: getEnvBool("DEAD_LETTER_ENABLED", true),
		ProcessTimeout:    getEnvDuration("EVENT_PROCESS_TIMEOUT", 10*time.Second),
		ConnectAttempts:   getEnvInt("KAFKA_CONNECT_ATTEMPTS", 3),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:         getEnv("HTTP_ADDR", ":8080"),
		Agents:       getEnvStringMap("AGENT_URLS", nil),
		ProbeTimeout: getEnvDuration("AGENT_PROBE_TIMEOUT", 2*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required when EVENTS_ENABLED is true")
	}
	if c.Events.Topic == "" {
		errs = append(errs, "KAFKA_TOPIC cannot be empty")
	}
	if c.App.Environment == EnvProduction && !c.State.BackendEnabled {
		errs = append(errs, "STATE_BACKEND_ENABLED is required in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		result = append(result, p)
	}
	return result
}

// getEnvStringMap parses "name=value,name2=value2" pairs.
func getEnvStringMap(key string, defaultVal map[string]string) map[string]string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(val, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		result[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}
	return result
}
