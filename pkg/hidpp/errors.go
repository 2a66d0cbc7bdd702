package hidpp

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound means no compatible device validated during
	// discovery. Callers treat this as absence, not failure.
	ErrDeviceNotFound = errors.New("hidpp: no compatible device found")
	// ErrPermissionDenied means the hidraw node exists but could not
	// be opened for read/write.
	ErrPermissionDenied = errors.New("hidpp: permission denied opening device")
	// ErrFeatureNotSupported means the device does not expose the
	// requested feature (index 0 in the feature table).
	ErrFeatureNotSupported = errors.New("hidpp: feature not supported by device")
	// ErrTimeout means the transaction poll budget was exhausted
	// without a matching response.
	ErrTimeout = errors.New("hidpp: transaction timed out")
)

// IoError wraps a transport-level failure. Observing one invalidates
// the device handle; callers are expected to tear down and reconnect.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("hidpp: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// ProtocolError reports a device-level error frame or a malformed response.
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string { return "hidpp: protocol error: " + e.Detail }

// SafetyViolationError indicates an attempt to use a feature known to
// write persistent device memory. It signals a programming defect,
// never a runtime condition to retry.
type SafetyViolationError struct {
	Feature FeatureID
	Reason  string
}

func (e *SafetyViolationError) Error() string {
	return fmt.Sprintf("hidpp: safety violation: blocked feature 0x%04X (%s)", uint16(e.Feature), e.Reason)
}
