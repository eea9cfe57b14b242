package pubsub

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
)

func TestSlogAdapter_TraceLogsAtDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(logger, false).Trace("hidden", nil)
	assert.Empty(t, buf.String(), "trace is off")

	NewSlogAdapter(logger, true).With(watermill.LogFields{"topic": "orders"}).Trace("fetched", nil)
	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "msg=fetched")
	assert.Contains(t, out, "topic=orders")
}
