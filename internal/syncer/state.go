package syncer

// State of a Synchronizer.
type State int

const (
	// StateUnsubscribed means no remote subscription is active.
	StateUnsubscribed State = iota
	// StateSubscribed means snapshots are being received.
	StateSubscribed
	// StateRemoteApplying is the short window after a snapshot was applied
	// during which local edits do not schedule writes.
	StateRemoteApplying
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribed:
		return "subscribed"
	case StateRemoteApplying:
		return "remote_applying"
	}
	return "unknown"
}

// Mode selects how local state is written back.
type Mode int

const (
	// ModeEager writes every changed item on its own as soon as it changes.
	ModeEager Mode = iota
	// ModeDiff debounces changes and commits the diff in one atomic batch.
	ModeDiff
	// ModeWindow debounces changes and rewrites the whole collection in one
	// atomic batch, skipping items rejected by Options.Keep.
	ModeWindow
)

func (m Mode) String() string {
	switch m {
	case ModeEager:
		return "eager"
	case ModeDiff:
		return "diff"
	case ModeWindow:
		return "window"
	}
	return "unknown"
}
