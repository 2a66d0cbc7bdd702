package haptics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateMachineTransitions(t *testing.T) {
	clock := newFakeClock()
	m := NewStateMachine()
	m.now = clock.Now

	assert.Equal(t, StateNotConnected, m.State())
	assert.True(t, m.CooldownElapsed(), "initial state has no cooldown")
	assert.False(t, m.Usable())

	m.MarkConnected()
	assert.Equal(t, StateConnected, m.State())
	assert.True(t, m.Usable())

	m.MarkDisconnected()
	assert.Equal(t, StateDisconnected, m.State())
	assert.False(t, m.Usable())
}

func TestStateMachineCooldownTiming(t *testing.T) {
	clock := newFakeClock()
	m := NewStateMachine()
	m.now = clock.Now

	m.MarkConnected()
	m.MarkDisconnected()
	assert.False(t, m.CooldownElapsed())

	clock.Advance(ReconnectCooldown - time.Millisecond)
	assert.False(t, m.CooldownElapsed())

	clock.Advance(2 * time.Millisecond)
	assert.True(t, m.CooldownElapsed())

	// A failed attempt restarts the clock.
	m.MarkAttemptFailed()
	assert.Equal(t, StateCooldown, m.State())
	assert.False(t, m.CooldownElapsed())

	clock.Advance(ReconnectCooldown)
	assert.True(t, m.CooldownElapsed())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "cooldown", StateCooldown.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "not_connected", StateNotConnected.String())
}

func TestProfileShapes(t *testing.T) {
	intensity, duration, pattern := Profile(SelectionConfirm)
	assert.Equal(t, 80, intensity)
	assert.Equal(t, uint16(25), duration)
	assert.Equal(t, PatternDouble, pattern)
	assert.Equal(t, 2, pattern.PulseCount())
	assert.Equal(t, 30*time.Millisecond, pattern.Gap())

	_, _, pattern = Profile(InvalidAction)
	assert.Equal(t, 3, pattern.PulseCount())
	assert.Equal(t, 20*time.Millisecond, pattern.Gap())
}

func TestEventByName(t *testing.T) {
	e, ok := EventByName("slice_change")
	assert.True(t, ok)
	assert.Equal(t, SliceChange, e)

	_, ok = EventByName("bogus")
	assert.False(t, ok)
}
