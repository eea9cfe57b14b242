package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		brokerDriver = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "topicbridge v"+version+"\n", out)
}

func TestPublishRejectsMemoryBroker(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "", "publish", "--broker", "memory", "orders", `{"id":1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the kafka driver")
	assert.NotContains(t, out, "Published")
}

func TestReadPayload(t *testing.T) {
	payload, err := readPayload(`{"id":1}`, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(payload))

	payload, err = readPayload("-", strings.NewReader("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(payload))
}

func TestPublishRequiresTwoArgs(t *testing.T) {
	_, err := run(t, "", "publish", "orders")
	assert.Error(t, err)
}

func TestUnknownBrokerFlag(t *testing.T) {
	_, err := run(t, "", "publish", "--broker", "rabbit", "orders", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbit")
}
