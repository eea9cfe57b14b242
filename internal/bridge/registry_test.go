package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a, b := NewConnID(), NewConnID()
	require.NotEqual(t, a, b)

	_, ok := r.Get(a)
	assert.False(t, ok)

	first := &Consumer{groupID: "g1"}
	second := &Consumer{groupID: "g2"}

	r.Set(a, first)
	got, ok := r.Get(a)
	require.True(t, ok)
	assert.Same(t, first, got)

	r.Set(a, second)
	got, _ = r.Get(a)
	assert.Same(t, second, got, "set overwrites the previous entry")
	assert.Equal(t, 1, r.Len())

	r.Set(b, first)
	assert.Equal(t, 2, r.Len())

	r.Remove(a)
	r.Remove(a)
	_, ok = r.Get(a)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestSubscribeError(t *testing.T) {
	cause := errors.New("broker unavailable")
	err := &SubscribeError{Topic: "orders", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not subscribe to orders: broker unavailable", err.Error())
	assert.Equal(t, "Error: Could not subscribe to orders", err.Notice())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "switching", StateSwitching.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
