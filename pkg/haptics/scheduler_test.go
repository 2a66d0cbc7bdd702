package haptics

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeClock drives the scheduler's debounce and cooldown timing
// without real sleeps.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// mouseResponder simulates the handshake side of a HID++ 2.0 mouse:
// ping, feature resolution, enumeration, and a unified battery.
func mouseResponder(table []hidpp.FeatureID) func([]byte) [][]byte {
	index := func(id hidpp.FeatureID) byte {
		for i, fid := range table {
			if fid == id {
				return byte(i + 1)
			}
		}
		return 0
	}
	return func(req []byte) [][]byte {
		r, err := hidpp.DecodeReport(req)
		if err != nil {
			return nil
		}
		reply := func(params []byte) [][]byte {
			resp := hidpp.LongReport(r.DeviceIndex, r.FeatureIndex, r.FunctionID(), r.SoftwareID(), params)
			return [][]byte{resp.Encode()}
		}
		switch {
		case r.FeatureIndex == 0 && r.FunctionID() == 0x01: // ping
			return reply([]byte{0, 0, r.Params[2]})
		case r.FeatureIndex == 0 && r.FunctionID() == 0x00: // getFeature
			id := hidpp.FeatureID(uint16(r.Params[0])<<8 | uint16(r.Params[1]))
			return reply([]byte{index(id)})
		case r.FeatureIndex == index(hidpp.FeatureSet) && r.FunctionID() == 0x00:
			return reply([]byte{byte(len(table))})
		case r.FeatureIndex == index(hidpp.FeatureSet) && r.FunctionID() == 0x01:
			i := r.Params[0]
			if i == 0 || int(i) > len(table) {
				return reply([]byte{0, 0})
			}
			return reply([]byte{byte(table[i-1] >> 8), byte(table[i-1])})
		case r.FeatureIndex == index(hidpp.FeatureUnifiedBattery):
			return reply([]byte{77, 0, 0, 1})
		}
		return nil
	}
}

// hapticTable is the standard simulated feature table; force feedback
// lands at index 2.
var hapticTable = []hidpp.FeatureID{
	hidpp.FeatureSet,
	hidpp.FeatureForceFeedback,
	hidpp.FeatureUnifiedBattery,
}

const hapticIndex = 2

func testOpener(dev *hid.MockDevice) DeviceOpener {
	mgr := &hid.MockManager{
		Infos: []hid.Info{{
			Path:      "/dev/hidraw0",
			VendorID:  hidpp.VendorLogitech,
			ProductID: hidpp.ProductBoltReceiver,
			Interface: 2,
		}},
		Devices: map[string]hid.Device{"/dev/hidraw0": dev},
	}
	return func() (*hidpp.Device, error) {
		return hidpp.Open(mgr, quietLog())
	}
}

// hapticFrames extracts the pulse commands from the mock's write log,
// skipping handshake traffic.
func hapticFrames(dev *hid.MockDevice) [][]byte {
	var out [][]byte
	for _, w := range dev.Writes {
		if len(w) > 2 && w[2] == hapticIndex {
			out = append(out, w)
		}
	}
	return out
}

func connectedScheduler(t *testing.T, settings Settings) (*Scheduler, *hid.MockDevice, *fakeClock) {
	t.Helper()
	dev := &hid.MockDevice{Respond: mouseResponder(hapticTable)}
	clock := newFakeClock()

	s := NewScheduler(testOpener(dev), settings, quietLog())
	s.now = clock.Now
	s.sleep = func(d time.Duration) { clock.Advance(d) }
	s.conn.now = clock.Now

	ok, err := s.Connect()
	require.NoError(t, err)
	require.True(t, ok)
	return s, dev, clock
}

func TestEmitScalesIntensity(t *testing.T) {
	tests := []struct {
		global, perEvent, want int
	}{
		{50, 80, 40},
		{100, 20, 20},
		{25, 40, 10},
	}
	for _, tt := range tests {
		set := DefaultSettings()
		set.Intensity = tt.global
		set.PerEvent[MenuAppear] = tt.perEvent

		s, dev, _ := connectedScheduler(t, set)
		s.Emit(MenuAppear)

		frames := hapticFrames(dev)
		require.Len(t, frames, 1, "global=%d per=%d", tt.global, tt.perEvent)
		assert.Equal(t, byte(tt.want), frames[0][4])
		s.Close()
	}
}

func TestEmitPattern(t *testing.T) {
	s, dev, clock := connectedScheduler(t, DefaultSettings())

	s.Emit(SelectionConfirm)
	require.Len(t, hapticFrames(dev), 2, "confirm is a double pulse")

	clock.Advance(100 * time.Millisecond)
	dev.Writes = nil
	s.Emit(InvalidAction)
	frames := hapticFrames(dev)
	require.Len(t, frames, 3, "invalid action is a triple pulse")
	for _, f := range frames {
		assert.Equal(t, byte(50*30/100), f[4])
		assert.Equal(t, byte(50), f[6]) // duration low byte
	}
}

func TestEmitDisabled(t *testing.T) {
	set := DefaultSettings()
	set.Enabled = false
	s, dev, _ := connectedScheduler(t, set)

	s.Emit(SelectionConfirm)
	assert.Empty(t, hapticFrames(dev))

	// Zero global intensity silences output the same way.
	set.Enabled = true
	set.Intensity = 0
	s.Apply(set)
	s.Emit(SelectionConfirm)
	assert.Empty(t, hapticFrames(dev))
}

func TestPulseDebounce(t *testing.T) {
	s, dev, clock := connectedScheduler(t, DefaultSettings())

	s.Emit(MenuAppear)
	s.Emit(MenuAppear) // inside the 20ms window
	assert.Len(t, hapticFrames(dev), 1)

	clock.Advance(25 * time.Millisecond)
	s.Emit(MenuAppear)
	assert.Len(t, hapticFrames(dev), 2)
}

func TestSliceChangeSuppression(t *testing.T) {
	s, dev, clock := connectedScheduler(t, DefaultSettings())

	assert.True(t, s.EmitSliceChange(2))
	require.Len(t, hapticFrames(dev), 1)

	// Re-entering the same slice inside the re-entry window is silent.
	clock.Advance(30 * time.Millisecond)
	assert.False(t, s.EmitSliceChange(2))

	// A fresh highlight of the same slice after the window pulses again.
	clock.Advance(60 * time.Millisecond)
	assert.True(t, s.EmitSliceChange(2))
	assert.Len(t, hapticFrames(dev), 2)
}

func TestSliceChangeFastSweep(t *testing.T) {
	s, dev, clock := connectedScheduler(t, DefaultSettings())

	assert.True(t, s.EmitSliceChange(1))

	// Sweeping to another slice inside the slice debounce window stays
	// silent but the new slice is tracked.
	clock.Advance(5 * time.Millisecond)
	assert.False(t, s.EmitSliceChange(2))
	assert.Len(t, hapticFrames(dev), 1)

	// After the windows pass, the tracked slice counts as re-entry
	// eligible again.
	clock.Advance(100 * time.Millisecond)
	assert.True(t, s.EmitSliceChange(2))
	assert.Len(t, hapticFrames(dev), 2)
}

func TestResetSliceTracking(t *testing.T) {
	s, _, clock := connectedScheduler(t, DefaultSettings())

	assert.True(t, s.EmitSliceChange(4))
	clock.Advance(30 * time.Millisecond)
	assert.False(t, s.EmitSliceChange(4))

	// Menu closed and reopened on the same slice: tracking is cleared,
	// so the pulse fires despite the short interval.
	s.ResetSliceTracking()
	assert.True(t, s.EmitSliceChange(4))
}

func TestEmitSurvivesWriteFailure(t *testing.T) {
	s, dev, clock := connectedScheduler(t, DefaultSettings())

	dev.WriteErr = assert.AnError
	clock.Advance(time.Second)
	s.Emit(MenuAppear) // must not panic or surface an error

	assert.False(t, s.Connected())
	assert.Equal(t, StateDisconnected, s.State())

	// Further emissions with no device are silent no-ops.
	clock.Advance(time.Second)
	s.Emit(SelectionConfirm)
}

func TestReconnectCooldown(t *testing.T) {
	clock := newFakeClock()
	dev := &hid.MockDevice{Respond: mouseResponder(hapticTable)}
	available := false
	opener := func() (*hidpp.Device, error) {
		if !available {
			return nil, hidpp.ErrDeviceNotFound
		}
		return testOpener(dev)()
	}

	s := NewScheduler(opener, DefaultSettings(), quietLog())
	s.now = clock.Now
	s.sleep = func(d time.Duration) { clock.Advance(d) }
	s.conn.now = clock.Now

	ok, err := s.Connect()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateCooldown, s.State())

	// Device comes back, but the cooldown has not elapsed yet.
	available = true
	clock.Advance(2 * time.Second)
	assert.False(t, s.ReconnectIfNeeded())

	clock.Advance(4 * time.Second)
	assert.True(t, s.ReconnectIfNeeded())
	assert.Equal(t, StateConnected, s.State())
}

func TestQueryBattery(t *testing.T) {
	s, _, _ := connectedScheduler(t, DefaultSettings())

	pct, charging, err := s.QueryBattery()
	require.NoError(t, err)
	assert.Equal(t, 77, pct)
	assert.True(t, charging)
}

func TestQueryBatteryWithoutDevice(t *testing.T) {
	s := NewScheduler(func() (*hidpp.Device, error) {
		return nil, hidpp.ErrDeviceNotFound
	}, DefaultSettings(), quietLog())

	_, _, err := s.QueryBattery()
	assert.ErrorIs(t, err, hidpp.ErrDeviceNotFound)
}
