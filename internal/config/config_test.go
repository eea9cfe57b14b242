package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "BROKER_DRIVER", "KAFKA_ADDRESS", "KAFKA_PORT",
		"KAFKA_BROKERS", "KAFKA_GROUP_PREFIX", "WS_SEND_BUFFER", "WS_WRITE_TIMEOUT",
		"WS_ORIGIN_PATTERNS", "WS_UPGRADE_RATE", "WS_PING_INTERVAL", "LOG_FORMAT", "LOG_LEVEL",
		"PUBSUB_TRACING_ENABLED", "PUBSUB_TRACING_SERVICE_NAME", "PUBSUB_TRACING_ZIPKIN_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverKafka, cfg.BrokerDriver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers())
	assert.Equal(t, "ws-user", cfg.GroupPrefix)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 54*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.OriginPatterns)
	assert.Zero(t, cfg.UpgradeRate)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "topicbridge", cfg.Tracing.ServiceName)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("BROKER_DRIVER", "MEMORY")
	t.Setenv("KAFKA_ADDRESS", "kafka.internal")
	t.Setenv("KAFKA_PORT", "19092")
	t.Setenv("WS_ORIGIN_PATTERNS", "example.com, *.example.org ,")
	t.Setenv("WS_WRITE_TIMEOUT", "2s")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PUBSUB_TRACING_ENABLED", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, DriverMemory, cfg.BrokerDriver)
	assert.Equal(t, []string{"kafka.internal:19092"}, cfg.Brokers())
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.OriginPatterns)
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestBrokerListWinsOverAddress(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_ADDRESS", "ignored")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9093")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9093"}, cfg.Brokers())
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown driver":    {"BROKER_DRIVER", "rabbit"},
		"port out of range": {"KAFKA_PORT", "70000"},
		"port not a number": {"KAFKA_PORT", "abc"},
		"zero send buffer":  {"WS_SEND_BUFFER", "0"},
		"bad duration":      {"WS_WRITE_TIMEOUT", "soon"},
		"bad log level":     {"LOG_LEVEL", "trace"},
		"bad broker entry":  {"KAFKA_BROKERS", "no-port"},
		"bad tracing flag":  {"PUBSUB_TRACING_ENABLED", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
