package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/nfrund/topicbridge/internal/pubsub"
)

// Broker drivers.
const (
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr        string        `validate:"required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	BrokerDriver string   `validate:"oneof=kafka memory"`
	KafkaAddress string   `validate:"required_without=KafkaBrokers"`
	KafkaPort    int      `validate:"min=1,max=65535"`
	KafkaBrokers []string `validate:"omitempty,dive,hostname_port"`
	GroupPrefix  string   `validate:"required"`

	SendBuffer     int           `validate:"min=1"`
	WriteTimeout   time.Duration `validate:"gt=0"`
	PingInterval   time.Duration `validate:"gte=0"`
	OriginPatterns []string
	UpgradeRate    int `validate:"min=0"`

	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	Tracing pubsub.TracingConfig
}

// validate is shared so struct metadata is cached across loads.
var validate = validator.New()

// New loads configuration from an optional .env file and the environment,
// applying defaults for anything unset.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []string
	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		BrokerDriver:    strings.ToLower(getEnv("BROKER_DRIVER", DriverKafka)),
		KafkaAddress:    getEnv("KAFKA_ADDRESS", "localhost"),
		KafkaPort:       getInt("KAFKA_PORT", 9092, &errs),
		KafkaBrokers:    getList("KAFKA_BROKERS"),
		GroupPrefix:     getEnv("KAFKA_GROUP_PREFIX", pubsub.DefaultGroupPrefix),
		SendBuffer:      getInt("WS_SEND_BUFFER", 256, &errs),
		WriteTimeout:    getDuration("WS_WRITE_TIMEOUT", 10*time.Second, &errs),
		PingInterval:    getDuration("WS_PING_INTERVAL", 54*time.Second, &errs),
		OriginPatterns:  getList("WS_ORIGIN_PATTERNS"),
		UpgradeRate:     getInt("WS_UPGRADE_RATE", 0, &errs),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "debug")),
		Tracing:         tracingFromEnv(&errs),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Brokers returns the broker list. KAFKA_BROKERS wins over the single
// KAFKA_ADDRESS/KAFKA_PORT pair.
func (c *Config) Brokers() []string {
	if len(c.KafkaBrokers) > 0 {
		return c.KafkaBrokers
	}
	return []string{fmt.Sprintf("%s:%d", c.KafkaAddress, c.KafkaPort)}
}

func tracingFromEnv(errs *[]string) pubsub.TracingConfig {
	tracing := pubsub.DefaultTracingConfig()
	if raw := os.Getenv("PUBSUB_TRACING_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("PUBSUB_TRACING_ENABLED: %q is not a boolean", raw))
		}
		tracing.Enabled = enabled
	}
	tracing.ServiceName = getEnv("PUBSUB_TRACING_SERVICE_NAME", tracing.ServiceName)
	tracing.ZipkinURL = getEnv("PUBSUB_TRACING_ZIPKIN_URL", tracing.ZipkinURL)
	return tracing
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration, errs *[]string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return d
}

// getList splits a comma-separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
