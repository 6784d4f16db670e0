package telemetry

// Phase is the lifecycle state of a Connection.
type Phase uint8

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseErrored
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseErrored:
		return "errored"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether p may move to next. Closed is terminal and
// reachable from every other phase.
func (p Phase) CanTransition(next Phase) bool {
	if next == PhaseClosed {
		return p != PhaseClosed
	}
	switch p {
	case PhaseDisconnected, PhaseErrored:
		return next == PhaseConnecting
	case PhaseConnecting:
		return next == PhaseConnected || next == PhaseDisconnected || next == PhaseErrored
	case PhaseConnected:
		return next == PhaseDisconnected || next == PhaseErrored
	default:
		return false
	}
}
