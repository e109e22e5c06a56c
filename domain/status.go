package domain

import "fmt"

// LifecycleState is the position of a project in its start/data/clear/delete lifecycle
type LifecycleState int

const (
	StateUnconfigured LifecycleState = iota
	StateConfigWritten
	StateRuntimeStarting
	StateBootstrapPending
	StateAuthenticated
	StateReady
	StateCleared
	StateStopped
	StateDeleted
)

func (s LifecycleState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigWritten:
		return "config_written"
	case StateRuntimeStarting:
		return "runtime_starting"
	case StateBootstrapPending:
		return "bootstrap_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateCleared:
		return "cleared"
	case StateStopped:
		return "stopped"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

func ParseLifecycleState(s string) (LifecycleState, error) {
	for state := StateUnconfigured; state <= StateDeleted; state++ {
		if state.String() == s {
			return state, nil
		}
	}
	return StateUnconfigured, fmt.Errorf("invalid lifecycle state: %q", s)
}

// MarshalText lets snapshots store the state by name
func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LifecycleState) UnmarshalText(text []byte) error {
	parsed, err := ParseLifecycleState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Operational reports whether the project finished bootstrap and holds rotated credentials
func (s LifecycleState) Operational() bool {
	switch s {
	case StateReady, StateCleared, StateStopped:
		return true
	default:
		return false
	}
}

// RuntimeStatus summarizes the containers of a project as seen by Docker
type RuntimeStatus int

const (
	RuntimeStatusUnknown RuntimeStatus = iota
	RuntimeStatusRunning
	RuntimeStatusPartial
	RuntimeStatusStopped
)

func (s RuntimeStatus) String() string {
	switch s {
	case RuntimeStatusRunning:
		return "running"
	case RuntimeStatusPartial:
		return "partial"
	case RuntimeStatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// BatchStatus is the state of an upload batch as tracked by Hound
type BatchStatus int

const (
	BatchStatusPending BatchStatus = iota
	BatchStatusComplete
	BatchStatusFailed
)

func (s BatchStatus) String() string {
	switch s {
	case BatchStatusPending:
		return "pending"
	case BatchStatusComplete:
		return "complete"
	case BatchStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func ParseBatchStatus(s string) (BatchStatus, error) {
	switch s {
	case "pending":
		return BatchStatusPending, nil
	case "complete":
		return BatchStatusComplete, nil
	case "failed":
		return BatchStatusFailed, nil
	default:
		return BatchStatusPending, fmt.Errorf("invalid batch status: %q", s)
	}
}
