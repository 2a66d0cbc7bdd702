// Package haptics schedules tactile feedback pulses on a connected
// mouse. Events carry fixed base profiles; a Scheduler scales them by
// configured intensity, applies debounce windows, and survives the
// device disappearing mid-session.
package haptics

import "time"

// Event identifies a UI moment that produces tactile feedback.
type Event int

const (
	// MenuAppear fires when the radial menu opens.
	MenuAppear Event = iota
	// SliceChange fires when the highlighted slice changes.
	SliceChange
	// SelectionConfirm fires when a slice is committed.
	SelectionConfirm
	// InvalidAction fires on a rejected gesture.
	InvalidAction
)

func (e Event) String() string {
	switch e {
	case MenuAppear:
		return "menu_appear"
	case SliceChange:
		return "slice_change"
	case SelectionConfirm:
		return "selection_confirm"
	case InvalidAction:
		return "invalid_action"
	default:
		return "unknown"
	}
}

// EventByName maps a config or CLI name back to its event.
func EventByName(name string) (Event, bool) {
	for _, e := range []Event{MenuAppear, SliceChange, SelectionConfirm, InvalidAction} {
		if e.String() == name {
			return e, true
		}
	}
	return 0, false
}

// Pattern is the pulse repetition shape of an event.
type Pattern int

const (
	PatternSingle Pattern = iota
	PatternDouble
	PatternTriple
)

// PulseCount returns how many pulses the pattern emits.
func (p Pattern) PulseCount() int {
	switch p {
	case PatternDouble:
		return 2
	case PatternTriple:
		return 3
	default:
		return 1
	}
}

// Gap returns the pause between consecutive pulses.
func (p Pattern) Gap() time.Duration {
	switch p {
	case PatternDouble:
		return 30 * time.Millisecond
	case PatternTriple:
		return 20 * time.Millisecond
	default:
		return 0
	}
}

// profile is the hardware-facing base shape of one event: intensity
// before scaling, pulse duration, and repetition pattern.
type profile struct {
	intensity  int // percent, scaled by global and per-event settings
	durationMs uint16
	pattern    Pattern
}

var profiles = map[Event]profile{
	MenuAppear:       {intensity: 20, durationMs: 10, pattern: PatternSingle},
	SliceChange:      {intensity: 40, durationMs: 15, pattern: PatternSingle},
	SelectionConfirm: {intensity: 80, durationMs: 25, pattern: PatternDouble},
	InvalidAction:    {intensity: 30, durationMs: 50, pattern: PatternTriple},
}

// Profile returns the base profile values for an event.
func Profile(e Event) (intensity int, durationMs uint16, pattern Pattern) {
	p := profiles[e]
	return p.intensity, p.durationMs, p.pattern
}

// Settings is the runtime tuning of the scheduler. Zero intensity or
// a disabled flag silences all output without disturbing connection
// state.
type Settings struct {
	Enabled   bool
	Intensity int // global scale, percent
	PerEvent  map[Event]int

	Debounce        time.Duration
	SliceDebounce   time.Duration
	ReentryDebounce time.Duration
}

// DefaultSettings returns the stock tuning.
func DefaultSettings() Settings {
	return Settings{
		Enabled:   true,
		Intensity: 50,
		PerEvent: map[Event]int{
			MenuAppear:       20,
			SliceChange:      40,
			SelectionConfirm: 80,
			InvalidAction:    30,
		},
		Debounce:        20 * time.Millisecond,
		SliceDebounce:   20 * time.Millisecond,
		ReentryDebounce: 50 * time.Millisecond,
	}
}

// scaled returns the wire intensity for an event: the global scale
// multiplied by the per-event scale, integer percent math.
func (s Settings) scaled(e Event) int {
	return s.Intensity * s.PerEvent[e] / 100
}
