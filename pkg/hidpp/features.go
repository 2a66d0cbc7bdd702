package hidpp

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// FeatureID is a protocol-wide 16-bit feature identifier. Devices map
// it to a local 8-bit feature index at runtime; index 0 means the
// feature is not supported.
type FeatureID uint16

// Features safe for runtime use (read-only or volatile).
const (
	FeatureRoot           FeatureID = 0x0000 // IRoot: protocol version, ping
	FeatureSet            FeatureID = 0x0001 // IFeatureSet: feature enumeration
	FeatureDeviceName     FeatureID = 0x0005
	FeatureBatteryStatus  FeatureID = 0x1000 // legacy battery
	FeatureUnifiedBattery FeatureID = 0x1004
	FeatureLEDControl     FeatureID = 0x1300
	FeatureForceFeedback  FeatureID = 0x8123 // haptics, volatile only
)

// blocklist maps features that write to onboard memory to the reason
// they are forbidden. A blocklisted feature is never inserted into a
// feature table and never addressed by a transaction, no matter what
// the device or the caller asks for. Extending the blocklist is a data
// change here, not new control flow.
var blocklist = map[FeatureID]string{
	0x1B04: "persistent button remapping",
	0x8060: "report rate may persist on some devices",
	0x8100: "persistent onboard profile storage",
	0x8090: "profile switching may persist",
	0x8110: "onboard profile modification",
	0x1BC0: "persistent key remapping",
	0x1815: "host pairing info persists",
}

// allowlist holds features vetted as safe for runtime use.
var allowlist = map[FeatureID]struct{}{
	FeatureRoot:           {},
	FeatureSet:            {},
	FeatureDeviceName:     {},
	FeatureBatteryStatus:  {},
	FeatureUnifiedBattery: {},
	FeatureLEDControl:     {},
	FeatureForceFeedback:  {},
}

// Classification is the result of running a feature ID through the
// safety gate.
type Classification int

const (
	ClassAllowed Classification = iota
	ClassBlocklisted
	ClassUnknown
)

func (c Classification) String() string {
	switch c {
	case ClassAllowed:
		return "allowed"
	case ClassBlocklisted:
		return "blocklisted"
	default:
		return "unknown"
	}
}

// Classify returns the safety classification of a feature ID, plus the
// blocklist reason when classified ClassBlocklisted.
func Classify(id FeatureID) (Classification, string) {
	if reason, ok := blocklist[id]; ok {
		return ClassBlocklisted, reason
	}
	if _, ok := allowlist[id]; ok {
		return ClassAllowed, ""
	}
	return ClassUnknown, ""
}

// BlocklistReason reports whether id is blocklisted and why.
func BlocklistReason(id FeatureID) (string, bool) {
	reason, ok := blocklist[id]
	return reason, ok
}

// BlocklistedFeatures returns the blocklisted feature IDs, for audit
// output and tests.
func BlocklistedFeatures() []FeatureID {
	out := make([]FeatureID, 0, len(blocklist))
	for id := range blocklist {
		out = append(out, id)
	}
	return out
}

// AllowedFeatures returns the explicitly vetted feature IDs.
func AllowedFeatures() []FeatureID {
	out := make([]FeatureID, 0, len(allowlist))
	for id := range allowlist {
		out = append(out, id)
	}
	return out
}

// SafetyGate is the runtime veto consulted before any feature use.
type SafetyGate struct {
	log *logrus.Logger
}

// NewSafetyGate returns a gate logging through log (nil for a default
// logger).
func NewSafetyGate(log *logrus.Logger) *SafetyGate {
	if log == nil {
		log = logrus.New()
	}
	return &SafetyGate{log: log}
}

// Verify fails with a SafetyViolationError if id is blocklisted. An
// unknown id passes with a logged caution; cautious but not fatal,
// since only the blocklist marks persistent writers.
func (g *SafetyGate) Verify(id FeatureID) error {
	class, reason := Classify(id)
	switch class {
	case ClassBlocklisted:
		g.log.WithFields(logrus.Fields{
			"feature_id": fmt04x(id),
			"reason":     reason,
		}).Error("safety violation: attempted use of blocklisted feature")
		return &SafetyViolationError{Feature: id, Reason: reason}
	case ClassUnknown:
		g.log.WithField("feature_id", fmt04x(id)).
			Warn("using unvetted feature; verify it does not persist to device memory")
	}
	return nil
}

func fmt04x(id FeatureID) string {
	return fmt.Sprintf("0x%04X", uint16(id))
}
