package wheel

// Phase is a step of the spin state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLaunch
	PhaseOrbit
	PhaseDecelerate
	PhaseTargetSeek
	PhaseSettled
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLaunch:
		return "launch"
	case PhaseOrbit:
		return "orbit"
	case PhaseDecelerate:
		return "decelerate"
	case PhaseTargetSeek:
		return "target_seek"
	case PhaseSettled:
		return "settled"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Moving reports whether the ball is under simulation in this phase.
func (p Phase) Moving() bool {
	return p == PhaseLaunch || p == PhaseOrbit || p == PhaseDecelerate || p == PhaseTargetSeek
}
