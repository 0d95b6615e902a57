package auth

// Status is the state of the authentication state machine.
type Status int

const (
	// StatusAuthInit is the state before Init completes.
	StatusAuthInit Status = iota
	// StatusResuming is set while the persisted session is being restored.
	StatusResuming
	// StatusSwitching is set while a session switch is in flight.
	StatusSwitching
	// StatusReady means the current session has been validated, or holds no
	// tokens at all.
	StatusReady
	// StatusError means the last switch failed. It is left by a retry or
	// another switch.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusAuthInit:
		return "AUTH_INIT"
	case StatusResuming:
		return "RESUMING"
	case StatusSwitching:
		return "SWITCHING"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Settled reports whether no switch is in progress.
func (s Status) Settled() bool {
	return s == StatusReady || s == StatusError
}
