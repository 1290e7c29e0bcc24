package rotation

import "rotator/internal/fleet"

// Phase is the last observed lifecycle state of a managed server.
type Phase uint8

const (
	PhaseUnknown Phase = iota + 1
	PhaseRunning
	PhaseExited
	PhaseRestarting
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseRunning:
		return "running"
	case PhaseExited:
		return "exited"
	case PhaseRestarting:
		return "restarting"
	default:
		return "unknown_phase"
	}
}

// phaseOf maps a runtime container state to a Phase. States other than
// exited and restarting count as running; the loop takes no action on them.
func phaseOf(state string) Phase {
	switch state {
	case fleet.StateExited:
		return PhaseExited
	case fleet.StateRestarting:
		return PhaseRestarting
	default:
		return PhaseRunning
	}
}
