package haptics

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/juhradial/hidpp/pkg/hidpp"
)

// DeviceOpener produces a connected device. Wrapping the open call in
// a func keeps the scheduler testable and lets callers inject their
// own manager.
type DeviceOpener func() (*hidpp.Device, error)

// Scheduler owns the haptic side of a device session: it connects,
// emits scaled event pulses under debounce rules, and degrades to
// silent no-ops when the device is absent. All methods are safe for
// concurrent use.
//
// The mutex is released while sleeping between pattern pulses, so a
// confirm pattern in flight never blocks a battery query.
type Scheduler struct {
	mu sync.Mutex

	open     DeviceOpener
	log      *logrus.Logger
	dev      *hidpp.Device
	settings Settings
	conn     *StateMachine

	lastPulse       time.Time
	lastSliceChange time.Time
	lastSlice       int // -1 when no slice has been tracked

	now   func() time.Time
	sleep func(time.Duration)
}

// NewScheduler returns a scheduler that is not yet connected.
func NewScheduler(open DeviceOpener, settings Settings, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{
		open:      open,
		log:       log,
		settings:  settings,
		conn:      NewStateMachine(),
		lastSlice: -1,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Connect attempts the initial device connection. Absence of a device
// is not an error: it returns (false, nil) and arms the reconnect
// cooldown, matching how a desktop session behaves when the mouse is
// off or out of range.
func (s *Scheduler) Connect() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return true, nil
	}
	return s.connectLocked()
}

func (s *Scheduler) connectLocked() (bool, error) {
	dev, err := s.open()
	if err != nil {
		s.conn.MarkAttemptFailed()
		if errors.Is(err, hidpp.ErrDeviceNotFound) {
			s.log.Debug("no device found, will retry after cooldown")
			return false, nil
		}
		return false, err
	}
	s.dev = dev
	s.conn.MarkConnected()
	s.lastSlice = -1
	s.log.WithFields(logrus.Fields{
		"transport": dev.Transport().String(),
		"haptics":   dev.HapticSupported(),
	}).Info("haptic scheduler connected")
	return true, nil
}

// ReconnectIfNeeded makes at most one reconnect attempt, and only once
// the cooldown has elapsed. Returns whether a device is held
// afterwards.
func (s *Scheduler) ReconnectIfNeeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return true
	}
	if !s.conn.CooldownElapsed() {
		return false
	}
	ok, err := s.connectLocked()
	if err != nil {
		s.log.WithError(err).Warn("reconnect attempt failed")
	}
	return ok
}

// Connected reports whether a device handle is currently held.
func (s *Scheduler) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// State returns the connection lifecycle position.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.State()
}

// Apply swaps in new settings. Takes effect on the next emission;
// pulses already in flight finish with the old values.
func (s *Scheduler) Apply(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Emit plays the event's pattern at the configured intensity. Disabled
// output, a zero scale, debounce suppression, and a missing device all
// reduce to a no-op; haptics must never surface errors into the UI
// loop that triggered them.
func (s *Scheduler) Emit(ev Event) {
	s.mu.Lock()
	set := s.settings
	if !set.Enabled || set.Intensity <= 0 {
		s.mu.Unlock()
		return
	}
	scaled := set.scaled(ev)
	if scaled <= 0 {
		s.mu.Unlock()
		return
	}
	if scaled > 100 {
		scaled = 100
	}

	prof := profiles[ev]
	pulses := prof.pattern.PulseCount()
	s.pulseLocked(byte(scaled), prof.durationMs, false)
	s.mu.Unlock()

	for i := 1; i < pulses; i++ {
		s.sleep(prof.pattern.Gap())
		s.mu.Lock()
		// Pattern follow-ups bypass the debounce window, which is
		// longer than any inter-pulse gap.
		s.pulseLocked(byte(scaled), prof.durationMs, true)
		s.mu.Unlock()
	}
}

// pulseLocked sends one pulse. Caller holds s.mu. The pulse timestamp
// advances on every attempt, device present or not, so debounce
// behavior does not change when the mouse is away.
func (s *Scheduler) pulseLocked(intensity byte, durationMs uint16, bypassDebounce bool) {
	now := s.now()
	if !bypassDebounce && now.Sub(s.lastPulse) < s.settings.Debounce {
		return
	}
	s.lastPulse = now

	if s.dev == nil || !s.dev.HapticSupported() {
		return
	}
	if err := s.dev.SendHapticPulse(intensity, durationMs); err != nil {
		s.handleDisconnectLocked(err)
	}
}

// EmitSliceChange emits the slice-change event with slice-aware
// suppression: re-entering the same slice inside the re-entry window
// is silent, and hopping to a different slice inside the slice
// debounce window updates tracking without pulsing. Returns whether an
// emission was attempted.
func (s *Scheduler) EmitSliceChange(slice int) bool {
	s.mu.Lock()
	now := s.now()

	if slice == s.lastSlice && now.Sub(s.lastSliceChange) < s.settings.ReentryDebounce {
		s.mu.Unlock()
		return false
	}
	if slice != s.lastSlice && now.Sub(s.lastSliceChange) < s.settings.SliceDebounce {
		// Fast sweep across slices: track the new slice but stay
		// silent so the motor does not buzz continuously.
		s.lastSlice = slice
		s.mu.Unlock()
		return false
	}

	s.lastSlice = slice
	s.lastSliceChange = now
	s.mu.Unlock()

	s.Emit(SliceChange)
	return true
}

// ResetSliceTracking clears slice state, typically when the menu
// closes, so reopening on the same slice still pulses.
func (s *Scheduler) ResetSliceTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSlice = -1
	s.lastSliceChange = time.Time{}
}

// QueryBattery proxies to the held device. An I/O failure tears down
// the handle and arms the cooldown, same as a failed pulse.
func (s *Scheduler) QueryBattery() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return 0, false, hidpp.ErrDeviceNotFound
	}
	pct, charging, err := s.dev.QueryBattery()
	var ioErr *hidpp.IoError
	if errors.As(err, &ioErr) || errors.Is(err, hidpp.ErrTimeout) {
		s.handleDisconnectLocked(err)
	}
	return pct, charging, err
}

// handleDisconnectLocked tears down a failed handle. Caller holds
// s.mu.
func (s *Scheduler) handleDisconnectLocked(cause error) {
	s.log.WithError(cause).Warn("device I/O failed, dropping handle")
	if s.dev != nil {
		s.dev.Close()
		s.dev = nil
	}
	s.conn.MarkDisconnected()
}

// Close releases the device handle if one is held.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	s.conn = NewStateMachine()
	return err
}
