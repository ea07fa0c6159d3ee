package session

// State is the position of a Controller in the session lifecycle.
type State int

const (
	Initializing State = iota
	Authenticated
	Unauthenticated
	ReloadRequested
	// Failed is terminal: Initialize was rejected.
	Failed
	// Stopped is terminal: the refresh task was stopped.
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case ReloadRequested:
		return "reload-requested"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one refresh tick.
type Outcome int

const (
	NoRefreshYet Outcome = iota
	Refreshed
	Unchanged
	RefreshFailed
)

func (o Outcome) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case Unchanged:
		return "unchanged"
	case RefreshFailed:
		return "failed"
	default:
		return "none"
	}
}
