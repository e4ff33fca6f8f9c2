package reload

import "time"

type State int

const (
	Unloaded State = iota
	Loaded
	Reloading
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Reloading:
		return "reloading"
	default:
		return "unknown"
	}
}

const (
	EventTypeLoaded       = "loaded"
	EventTypeUnloaded     = "unloaded"
	EventTypeReloading    = "reloading"
	EventTypeReloadFailed = "reload_failed"
	EventTypeCorruptBatch = "corrupt_batch"
)

// Event describes one step of the reload lifecycle.
type Event struct {
	EventType string
	State     State
	Path      string
	ReloadID  string
	Err       error
	Timestamp time.Time
}

func (e Event) Type() string {
	return e.EventType
}

// Metrics counts what the orchestrator has done since it was created.
type Metrics struct {
	Batches        uint64
	CorruptBatches uint64
	ReloadAttempts uint64
	Reloads        uint64
	Failures       uint64
}
