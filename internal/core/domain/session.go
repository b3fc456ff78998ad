package domain

// SessionState tracks a negotiation from no connection to an established
// transport. Closed is terminal; a new session requires an explicit Connect
// after Stop.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionOffering
	SessionAwaitingAnswer
	SessionAnswering
	SessionConnected
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionOffering:
		return "offering"
	case SessionAwaitingAnswer:
		return "awaiting_answer"
	case SessionAnswering:
		return "answering"
	case SessionConnected:
		return "connected"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session can no longer progress.
func (s SessionState) Terminal() bool {
	return s == SessionClosed
}
