package bridge

// State is the lifecycle state of one connection's session.
type State int

const (
	// StateIdle means no consumer is delivering to the connection.
	StateIdle State = iota
	// StateSwitching means a topic switch is in flight.
	StateSwitching
	// StateSubscribed means exactly one consumer is delivering to the connection.
	StateSubscribed
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSwitching:
		return "switching"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
