package pipeline

// SessionState is the lifecycle state of a receiver session.
type SessionState int

const (
	// SessionDetecting means the session was created and waits for its
	// first packet.
	SessionDetecting SessionState = iota
	// SessionActive means the session is buffering and playing.
	SessionActive
	// SessionPaused means playback is suspended while buffering continues.
	SessionPaused
	// SessionTerminated means the session stopped and waits to be removed.
	SessionTerminated
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionDetecting:
		return "detecting"
	case SessionActive:
		return "active"
	case SessionPaused:
		return "paused"
	case SessionTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
