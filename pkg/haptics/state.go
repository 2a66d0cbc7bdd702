package haptics

import "time"

// ReconnectCooldown is how long the scheduler waits after losing the
// device (or failing a reconnect) before the next attempt.
const ReconnectCooldown = 5 * time.Second

// State is the scheduler's connection lifecycle position.
type State int

const (
	// StateNotConnected is the initial state; no device has been held
	// yet, so attempts are allowed immediately.
	StateNotConnected State = iota
	// StateConnected means a validated device handle is held.
	StateConnected
	// StateDisconnected is entered when I/O on a held handle fails.
	StateDisconnected
	// StateCooldown is entered after a failed connect or reconnect
	// attempt.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not_connected"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// StateMachine tracks connection state and cooldown timing. It is not
// safe for concurrent use; the scheduler serializes access.
type StateMachine struct {
	state State
	since time.Time
	now   func() time.Time
}

func NewStateMachine() *StateMachine {
	return &StateMachine{now: time.Now}
}

// State returns the current lifecycle position.
func (m *StateMachine) State() State { return m.state }

// MarkConnected records a successful connect or reconnect.
func (m *StateMachine) MarkConnected() {
	m.state = StateConnected
	m.since = m.now()
}

// MarkDisconnected records an I/O failure on a held handle. The
// cooldown clock starts here.
func (m *StateMachine) MarkDisconnected() {
	m.state = StateDisconnected
	m.since = m.now()
}

// MarkAttemptFailed records a connect or reconnect attempt that found
// no usable device. The cooldown clock restarts.
func (m *StateMachine) MarkAttemptFailed() {
	m.state = StateCooldown
	m.since = m.now()
}

// CooldownElapsed reports whether a new connection attempt is
// permitted. Before any connection has been held there is no cooldown
// to wait out.
func (m *StateMachine) CooldownElapsed() bool {
	switch m.state {
	case StateNotConnected:
		return true
	case StateDisconnected, StateCooldown:
		return m.now().Sub(m.since) >= ReconnectCooldown
	default:
		return false
	}
}

// Usable reports whether the scheduler holds a live device.
func (m *StateMachine) Usable() bool { return m.state == StateConnected }
