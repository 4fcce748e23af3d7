package session

import "fmt"

// State is the lifecycle position of a Session.
//
//	Idle -> Sending -> Streaming -> Committing -> Idle
//	Sending | Streaming | Committing -> Errored -> Idle
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCommitting
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCommitting:
		return "committing"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateObserver is called after every transition. It runs on the goroutine driving the
// session and must not block.
type StateObserver func(from, to State)
