package pglisten

// State is the lifecycle state of a Session.
type State int

// Session states.
const (
	StateIdle           State = iota // Constructed, Connect not yet called
	StateConnecting                  // First handshake in progress
	StateConnected                   // Connected; see Session.Healthy for the degraded case
	StateReinitializing              // Reconnect cycle in progress
	StateClosing                     // Close in progress
	StateClosed                      // Terminal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReinitializing:
		return "reinitializing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the session can no longer be used.
func (s State) IsTerminal() bool {
	return s == StateClosing || s == StateClosed
}
