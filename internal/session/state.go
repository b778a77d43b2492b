// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

// State is the lifecycle position of the current query.
type State int

const (
	// StateIdle means no query has been run yet.
	StateIdle State = iota
	// StateCounting means the count probe for the current epoch is running.
	StateCounting
	// StateEagerLoaded means the result is (or is being) loaded whole.
	StateEagerLoaded
	// StateWindowedActive means rows are served from the chunk cache.
	StateWindowedActive
	// StateFailed means the query was rejected or its eager load failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCounting:
		return "COUNTING"
	case StateEagerLoaded:
		return "EAGER_LOADED"
	case StateWindowedActive:
		return "WINDOWED_ACTIVE"
	case StateFailed:
		return "FAILED"
	default:
		return "IDLE"
	}
}

// EventKind classifies what Apply did with a completion.
type EventKind int

const (
	EventNone EventKind = iota
	// EventChunkLoaded means a window was admitted to the cache.
	EventChunkLoaded
	// EventChunkFailed means a window load failed for the current epoch.
	EventChunkFailed
	// EventEagerLoaded means the whole result is available.
	EventEagerLoaded
	// EventEagerFailed means the eager load failed and the session is FAILED.
	EventEagerFailed
	// EventDiscarded means the completion belonged to a stale epoch or did
	// not survive eviction.
	EventDiscarded
)

func (k EventKind) String() string {
	switch k {
	case EventChunkLoaded:
		return "chunk_loaded"
	case EventChunkFailed:
		return "chunk_failed"
	case EventEagerLoaded:
		return "eager_loaded"
	case EventEagerFailed:
		return "eager_failed"
	case EventDiscarded:
		return "discarded"
	default:
		return "none"
	}
}

// Event describes the effect of one completion.
type Event struct {
	Kind  EventKind
	Index int
	Epoch int64
	Err   error
}

// Visible reports whether the event may change what is on screen.
func (e Event) Visible() bool {
	return e.Kind != EventNone && e.Kind != EventDiscarded
}
