package screener

// State is the lifecycle position of the scraper's current browser session.
type State string

const (
	StateIdle            State = "idle"
	StateSessionStarting State = "session_starting"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateNavigating      State = "navigating"
	StateExtracting      State = "extracting"
	StateClosed          State = "closed"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transition follows within the current call.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// Observer is notified of every state transition, in order, while the scraper lock is held.
type Observer func(ticker string, from, to State)
