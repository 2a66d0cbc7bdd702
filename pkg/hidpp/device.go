package hidpp

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/juhradial/hidpp/internal/hid"
)

// Logitech vendor and known product IDs.
const (
	VendorLogitech uint16 = 0x046D

	ProductMXMaster4USB     uint16 = 0xB034
	ProductBoltReceiver     uint16 = 0xC548
	ProductUnifyingReceiver uint16 = 0xC52B
)

// Transport describes how the mouse is reached.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportUSB
	TransportBolt
	TransportUnifying
	TransportBluetooth
)

func (t Transport) String() string {
	switch t {
	case TransportUSB:
		return "USB"
	case TransportBolt:
		return "Bolt"
	case TransportUnifying:
		return "Unifying"
	case TransportBluetooth:
		return "Bluetooth"
	default:
		return "unknown"
	}
}

// TransportForProduct maps a known product ID to its transport.
func TransportForProduct(productID uint16) Transport {
	switch productID {
	case ProductBoltReceiver:
		return TransportBolt
	case ProductUnifyingReceiver:
		return TransportUnifying
	case ProductMXMaster4USB:
		return TransportUSB
	default:
		return TransportBluetooth
	}
}

// IRoot functions.
const (
	funcRootGetFeature byte = 0x00
	funcRootPing       byte = 0x01
)

// IFeatureSet functions.
const (
	funcFeatureSetCount byte = 0x00
	funcFeatureSetID    byte = 0x01
)

// pingSentinel is echoed back by a live HID++ 2.0 endpoint.
const pingSentinel byte = 0xAA

// Device is a connected HID++ 2.0 device: one exclusive handle, one
// transaction channel, and the feature table built at connect time.
// The handle and the table live and die together; any I/O failure
// invalidates both. All exported methods serialize on one mutex, so
// two consumers (haptics, battery) can share a Device with each call
// owning the handle for exactly one logical operation.
type Device struct {
	mu sync.Mutex

	raw       hid.Device
	ch        *Channel
	transport Transport
	path      string
	gate      *SafetyGate
	log       *logrus.Logger

	features    map[FeatureID]byte
	hapticIndex byte // 0 = no haptic support

	batteryIndex   byte // 0 = unresolved
	batteryUnified bool
}

type candidate struct {
	info        hid.Info
	transport   Transport
	deviceIndex byte
	priority    int
}

// rankCandidates filters to the target vendor and orders endpoints by
// transport quality: dedicated receiver first, then direct USB, then
// anything else, preferring the device's second logical interface on
// ties (the interface conventionally carrying HID++ traffic).
func rankCandidates(infos []hid.Info) []candidate {
	var out []candidate
	for _, info := range infos {
		if info.VendorID != VendorLogitech {
			continue
		}
		c := candidate{info: info}
		switch info.ProductID {
		case ProductBoltReceiver:
			c.transport, c.deviceIndex, c.priority = TransportBolt, DeviceIndexReceiver, 3
		case ProductUnifyingReceiver:
			c.transport, c.deviceIndex, c.priority = TransportUnifying, DeviceIndexReceiver, 2
		case ProductMXMaster4USB:
			c.transport, c.deviceIndex, c.priority = TransportUSB, DeviceIndexDirect, 2
		default:
			c.transport, c.deviceIndex, c.priority = TransportBluetooth, DeviceIndexDirect, 1
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].info.Interface == 2 && out[j].info.Interface != 2
	})
	return out
}

// Open scans for a compatible device and connects to the best
// candidate. A candidate is accepted only after a live ping succeeds,
// which rejects receivers with no paired mouse even though their nodes
// open fine. Returns ErrDeviceNotFound when nothing validates; callers
// treat that as absence, not failure.
func Open(mgr hid.Manager, log *logrus.Logger) (*Device, error) {
	if log == nil {
		log = logrus.New()
	}

	infos, err := mgr.List(VendorLogitech)
	if err != nil {
		return nil, &IoError{Op: "enumerate devices", Err: err}
	}

	permissionSeen := false
	for _, cand := range rankCandidates(infos) {
		raw, err := mgr.Open(cand.info)
		if err != nil {
			if isPermissionError(err) {
				permissionSeen = true
			}
			log.WithFields(logrus.Fields{
				"path":  cand.info.Path,
				"error": err,
			}).Debug("could not open candidate")
			continue
		}

		d := &Device{
			raw:       raw,
			ch:        NewChannel(raw, cand.deviceIndex, log),
			transport: cand.transport,
			path:      cand.info.Path,
			gate:      NewSafetyGate(log),
			log:       log,
			features:  make(map[FeatureID]byte),
		}

		if err := d.ping(); err != nil {
			log.WithFields(logrus.Fields{
				"path":  cand.info.Path,
				"error": err,
			}).Debug("candidate did not validate, trying next")
			raw.Close()
			continue
		}

		if err := d.enumerateFeatures(); err != nil {
			log.WithFields(logrus.Fields{
				"path":  cand.info.Path,
				"error": err,
			}).Debug("feature enumeration failed, trying next")
			raw.Close()
			continue
		}

		log.WithFields(logrus.Fields{
			"path":      d.path,
			"transport": d.transport.String(),
			"features":  len(d.features),
			"haptics":   d.hapticIndex != 0,
		}).Info("connected")
		return d, nil
	}

	if permissionSeen {
		return nil, ErrPermissionDenied
	}
	return nil, ErrDeviceNotFound
}

// isPermissionError spots an open failure caused by hidraw node
// permissions, so the caller can suggest a udev rule instead of
// reporting device absence.
func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		strings.Contains(strings.ToLower(err.Error()), "permission")
}

// OpenDefault connects through the platform HID backend. Open exists
// for callers that inject their own manager.
func OpenDefault(log *logrus.Logger) (*Device, error) {
	mgr, err := hid.NewManager()
	if err != nil {
		return nil, &IoError{Op: "init HID backend", Err: err}
	}
	return Open(mgr, log)
}

// ping validates HID++ 2.0 support by asking IRoot to echo a sentinel.
func (d *Device) ping() error {
	resp, err := d.ch.Send(0x00, funcRootPing, []byte{0x00, 0x00, pingSentinel})
	if err != nil {
		return err
	}
	if len(resp.Params) < 3 || resp.Params[2] != pingSentinel {
		return &ProtocolError{Detail: "ping sentinel not echoed"}
	}
	return nil
}

// Ping re-validates the connection.
func (d *Device) Ping() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ping()
}

// resolveFeatureIndex asks IRoot for the device-local index of a
// feature ID. Index 0 means not supported and is never returned.
func (d *Device) resolveFeatureIndex(id FeatureID) (byte, error) {
	resp, err := d.ch.Send(0x00, funcRootGetFeature, []byte{byte(id >> 8), byte(id)})
	if err != nil {
		return 0, err
	}
	if len(resp.Params) < 1 {
		return 0, &ProtocolError{Detail: "empty getFeature response"}
	}
	if resp.Params[0] == 0 {
		return 0, ErrFeatureNotSupported
	}
	return resp.Params[0], nil
}

// enumerateFeatures builds the feature table from two bootstrap
// queries: IFeatureSet's count, then one ID lookup per index. Every
// discovered ID passes through the safety gate; blocklisted features
// are logged and unconditionally excluded, so no later code path can
// address them even by mistake.
func (d *Device) enumerateFeatures() error {
	setIndex, err := d.resolveFeatureIndex(FeatureSet)
	if err != nil {
		return fmt.Errorf("resolve IFeatureSet: %w", err)
	}

	resp, err := d.ch.Send(setIndex, funcFeatureSetCount, nil)
	if err != nil {
		return fmt.Errorf("feature count: %w", err)
	}
	if len(resp.Params) < 1 {
		return &ProtocolError{Detail: "empty feature count response"}
	}
	count := resp.Params[0]

	for i := byte(0); i < count; i++ {
		resp, err := d.ch.Send(setIndex, funcFeatureSetID, []byte{i + 1})
		if err != nil {
			d.log.WithFields(logrus.Fields{
				"index": i + 1,
				"error": err,
			}).Debug("feature lookup failed, skipping index")
			continue
		}
		if len(resp.Params) < 2 {
			continue
		}
		id := FeatureID(uint16(resp.Params[0])<<8 | uint16(resp.Params[1]))
		index := i + 1

		if class, reason := Classify(id); class == ClassBlocklisted {
			d.log.WithFields(logrus.Fields{
				"feature_id": fmt04x(id),
				"reason":     reason,
			}).Warn("device exposes blocklisted feature; excluded from use")
			continue
		}

		d.features[id] = index
		if id == FeatureForceFeedback {
			d.hapticIndex = index
			d.log.WithField("index", index).Info("haptic feature found (volatile, runtime-only)")
		}
	}

	d.log.WithFields(logrus.Fields{
		"stored":   len(d.features),
		"reported": count,
	}).Debug("feature enumeration complete")
	return nil
}

// FeatureIndex returns the device-local index for a feature ID after a
// safety-gate check. Blocklisted IDs fail with SafetyViolationError
// regardless of what the device reports; absent IDs fail with
// ErrFeatureNotSupported.
func (d *Device) FeatureIndex(id FeatureID) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gate.Verify(id); err != nil {
		return 0, err
	}
	index, ok := d.features[id]
	if !ok {
		return 0, ErrFeatureNotSupported
	}
	return index, nil
}

// Features returns a copy of the feature table.
func (d *Device) Features() map[FeatureID]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[FeatureID]byte, len(d.features))
	for id, idx := range d.features {
		out[id] = idx
	}
	return out
}

// Transport reports how the device is connected.
func (d *Device) Transport() Transport { return d.transport }

// Path returns the opened endpoint path.
func (d *Device) Path() string { return d.path }

// HapticSupported reports whether the force feedback feature resolved.
func (d *Device) HapticSupported() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hapticIndex != 0
}

// SendHapticPulse issues one volatile pulse command. Fire-and-forget:
// pulses must finish in low single-digit milliseconds, so no response
// is awaited. Succeeds silently when the device lacks haptic support.
func (d *Device) SendHapticPulse(intensity byte, durationMs uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hapticIndex == 0 {
		return nil
	}
	if err := d.gate.Verify(FeatureForceFeedback); err != nil {
		return err
	}
	return d.ch.SendNoReply(d.hapticIndex, 0x00, []byte{
		intensity,
		byte(durationMs >> 8),
		byte(durationMs),
	})
}

// Battery feature functions.
const (
	funcUnifiedGetStatus      byte = 0x01
	funcLegacyGetLevelStatus  byte = 0x00
	unifiedChargingStatusByte      = 3
	legacyChargingStatusByte       = 2
)

// QueryBattery reads the battery level and charging flag, resolving
// the battery feature on first use: the unified feature is preferred,
// the legacy status feature is the fallback; whichever resolves is
// cached for subsequent calls.
func (d *Device) QueryBattery() (int, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.batteryIndex == 0 {
		if idx, ok := d.features[FeatureUnifiedBattery]; ok {
			d.batteryIndex, d.batteryUnified = idx, true
			d.log.WithField("index", idx).Info("using unified battery feature")
		} else if idx, ok := d.features[FeatureBatteryStatus]; ok {
			d.batteryIndex, d.batteryUnified = idx, false
			d.log.WithField("index", idx).Info("using legacy battery status feature")
		} else {
			return 0, false, ErrFeatureNotSupported
		}
	}

	function := funcLegacyGetLevelStatus
	if d.batteryUnified {
		function = funcUnifiedGetStatus
	}
	resp, err := d.ch.Send(d.batteryIndex, function, nil)
	if err != nil {
		return 0, false, err
	}

	if d.batteryUnified {
		return parseUnifiedBattery(resp)
	}
	return parseLegacyBattery(resp)
}

// parseUnifiedBattery decodes a unified battery (0x1004) getStatus
// response: state-of-charge in param 0, charging status in param 3.
// The 6-value status space collapses to charging for 1 (charging),
// 2 (slow charge), and 3 (charge complete).
func parseUnifiedBattery(r Report) (int, bool, error) {
	if len(r.Params) <= unifiedChargingStatusByte {
		return 0, false, &ProtocolError{Detail: "unified battery response too short"}
	}
	status := r.Params[unifiedChargingStatusByte]
	return int(r.Params[0]), status >= 1 && status <= 3, nil
}

// parseLegacyBattery decodes a legacy battery status (0x1000)
// response: level in param 0, status in param 2. Statuses 1 through 4
// are all charging variants.
func parseLegacyBattery(r Report) (int, bool, error) {
	if len(r.Params) <= legacyChargingStatusByte {
		return 0, false, &ProtocolError{Detail: "battery status response too short"}
	}
	status := r.Params[legacyChargingStatusByte]
	return int(r.Params[0]), status >= 1 && status <= 4, nil
}

// Close releases the handle. The device, its channel, and its feature
// table are unusable afterwards.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raw == nil {
		return nil
	}
	err := d.raw.Close()
	d.raw = nil
	return err
}
