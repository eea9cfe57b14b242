package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownConnection is returned for operations on a connection that was never opened or is already closed.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrSessionClosed is returned when a switch is requested on a closing connection.
	ErrSessionClosed = errors.New("session closed")
	// ErrDuplicateConnection is returned when a connection id is opened twice.
	ErrDuplicateConnection = errors.New("connection already open")
	// ErrAlreadyStarted is returned when a consumer is started a second time.
	ErrAlreadyStarted = errors.New("consumer already started")
)

// SubscribeError reports a failed topic switch. Broker unavailability,
// authorization failures and invalid topics all surface as this error.
type SubscribeError struct {
	Topic string
	Err   error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("could not subscribe to %s: %v", e.Topic, e.Err)
}

func (e *SubscribeError) Unwrap() error {
	return e.Err
}

// Notice returns the text sent to the client when the switch fails.
func (e *SubscribeError) Notice() string {
	return "Error: Could not subscribe to " + e.Topic
}
