package pubsub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultGroupPrefix is prepended to every generated consumer group id.
const DefaultGroupPrefix = "ws-user"

// NewGroupID derives a consumer group id that is never reused: the current
// time in milliseconds plus a random UUID. A fresh group has no committed
// offsets, so the broker treats each one as an independent subscription.
func NewGroupID(prefix string) string {
	if prefix == "" {
		prefix = DefaultGroupPrefix
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString())
}
