package domain

// TransportMode tells which channel currently feeds the engine.
// The mode is process-wide per open chat surface, not per room.
type TransportMode int

const (
	// Disconnected means no chat surface is open and nothing is synced.
	Disconnected TransportMode = iota
	// Live means the push channel is connected and delivers increments.
	Live
	// Degraded means the push channel is down and polling is active.
	Degraded
)

func (m TransportMode) String() string {
	switch m {
	case Live:
		return "LIVE"
	case Degraded:
		return "DEGRADED"
	default:
		return "DISCONNECTED"
	}
}
