// Package hidpp implements the HID++ 2.0 request/response protocol
// over a raw HID transport, restricted to runtime-only features that
// never touch the device's onboard memory.
package hidpp

import (
	"fmt"
)

// HID++ report type tags.
const (
	ReportTypeShort    byte = 0x10 // 7-byte frame
	ReportTypeLong     byte = 0x11 // 20-byte frame
	ReportTypeVeryLong byte = 0x12 // 64-byte frame, recognized but never sent
)

// Frame lengths including the report type byte.
const (
	ShortReportLen    = 7
	LongReportLen     = 20
	VeryLongReportLen = 64
)

// Device indices used in byte 1 of every frame.
const (
	// DeviceIndexReceiver addresses the first device paired to a
	// Bolt/Unifying receiver.
	DeviceIndexReceiver byte = 0x01
	// DeviceIndexDirect addresses a device connected over USB or
	// Bluetooth without a receiver in between.
	DeviceIndexDirect byte = 0xFF
)

// Report is a decoded HID++ frame. Byte 3 of the wire format packs the
// function ID in the high nibble and the software ID in the low nibble;
// both are kept packed here and accessed through FunctionID/SoftwareID.
type Report struct {
	Type         byte
	DeviceIndex  byte
	FeatureIndex byte
	FuncSwID     byte
	Params       []byte // 3 bytes short, 16 long, 60 very long
}

// PackFuncSwID packs a function ID and software ID into one byte.
func PackFuncSwID(functionID, softwareID byte) byte {
	return functionID<<4 | softwareID&0x0F
}

// FunctionID returns the high nibble of the packed function/software byte.
func (r Report) FunctionID() byte { return r.FuncSwID >> 4 }

// SoftwareID returns the low nibble of the packed function/software byte.
func (r Report) SoftwareID() byte { return r.FuncSwID & 0x0F }

func reportLen(typ byte) (int, bool) {
	switch typ {
	case ReportTypeShort:
		return ShortReportLen, true
	case ReportTypeLong:
		return LongReportLen, true
	case ReportTypeVeryLong:
		return VeryLongReportLen, true
	}
	return 0, false
}

// ShortReport builds a 7-byte request. Params beyond 3 bytes are dropped.
func ShortReport(deviceIndex, featureIndex, functionID, softwareID byte, params []byte) Report {
	p := make([]byte, 3)
	copy(p, params)
	return Report{
		Type:         ReportTypeShort,
		DeviceIndex:  deviceIndex,
		FeatureIndex: featureIndex,
		FuncSwID:     PackFuncSwID(functionID, softwareID),
		Params:       p,
	}
}

// LongReport builds a 20-byte request. Params beyond 16 bytes are dropped.
func LongReport(deviceIndex, featureIndex, functionID, softwareID byte, params []byte) Report {
	p := make([]byte, 16)
	copy(p, params)
	return Report{
		Type:         ReportTypeLong,
		DeviceIndex:  deviceIndex,
		FeatureIndex: featureIndex,
		FuncSwID:     PackFuncSwID(functionID, softwareID),
		Params:       p,
	}
}

// Encode serializes the report into its fixed-size wire frame. A
// report whose type is not a recognized tag encodes to nil rather
// than a mislabeled frame; the constructors only produce recognized
// types.
func (r Report) Encode() []byte {
	n, ok := reportLen(r.Type)
	if !ok {
		return nil
	}
	b := make([]byte, n)
	b[0] = r.Type
	b[1] = r.DeviceIndex
	b[2] = r.FeatureIndex
	b[3] = r.FuncSwID
	copy(b[4:], r.Params)
	return b
}

// DecodeReport parses a wire frame. The report type tag must match the
// frame's fixed length; anything else is rejected.
func DecodeReport(b []byte) (Report, error) {
	if len(b) < ShortReportLen {
		return Report{}, &ProtocolError{Detail: fmt.Sprintf("frame too short: %d bytes", len(b))}
	}
	n, ok := reportLen(b[0])
	if !ok {
		return Report{}, &ProtocolError{Detail: fmt.Sprintf("unknown report type 0x%02X", b[0])}
	}
	if len(b) < n {
		return Report{}, &ProtocolError{Detail: fmt.Sprintf("truncated 0x%02X report: %d of %d bytes", b[0], len(b), n)}
	}
	params := make([]byte, n-4)
	copy(params, b[4:n])
	return Report{
		Type:         b[0],
		DeviceIndex:  b[1],
		FeatureIndex: b[2],
		FuncSwID:     b[3],
		Params:       params,
	}, nil
}
