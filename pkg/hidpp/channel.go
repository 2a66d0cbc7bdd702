package hidpp

import (
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/juhradial/hidpp/internal/hid"
)

const (
	// Poll budget for a response: 100 attempts x 10ms.
	txAttempts  = 100
	txPollDelay = 10 * time.Millisecond

	// Feature index of a HID++ error report.
	errorReportMarker = 0x8F
	// First error code family signalling an invalid request against a
	// valid feature index.
	errInvalidFunction = 0x05
)

// Channel owns one open device handle and performs the
// write-then-poll-read request/response exchange. It is not safe for
// concurrent use; the owning Device serializes access.
type Channel struct {
	dev         hid.Device
	deviceIndex byte
	swID        byte // rotates 1..15 across all transactions on this handle
	log         *logrus.Logger

	// Injectable for tests; defaults to time.Sleep.
	sleep func(time.Duration)
}

// NewChannel wraps an open handle addressing the given device index.
func NewChannel(dev hid.Device, deviceIndex byte, log *logrus.Logger) *Channel {
	if log == nil {
		log = logrus.New()
	}
	return &Channel{
		dev:         dev,
		deviceIndex: deviceIndex,
		swID:        0x01,
		log:         log,
		sleep:       time.Sleep,
	}
}

// nextSwID returns the current software ID and advances the rotation
// (1..15, never 0 so responses are distinguishable from notifications).
func (c *Channel) nextSwID() byte {
	id := c.swID
	if c.swID >= 0x0F {
		c.swID = 0x01
	} else {
		c.swID++
	}
	return id
}

// drain discards any buffered unread data left over from prior
// traffic, so a stale notification is never consumed as the response
// to the request about to be sent.
func (c *Channel) drain() {
	var buf [VeryLongReportLen]byte
	for {
		n, err := c.dev.Read(buf[:])
		if err != nil || n == 0 {
			return
		}
	}
}

// Send issues one request and polls for its response. Only a frame
// whose device index, feature index, function ID, and software ID all
// match the request is accepted; anything else is treated as an
// unrelated device notification and discarded. A frame flagged as an
// error report surfaces as a ProtocolError, and exhausting the poll
// budget yields ErrTimeout.
func (c *Channel) Send(featureIndex, functionID byte, params []byte) (Report, error) {
	swID := c.nextSwID()

	var req Report
	if len(params) <= 3 {
		req = ShortReport(c.deviceIndex, featureIndex, functionID, swID, params)
	} else {
		req = LongReport(c.deviceIndex, featureIndex, functionID, swID, params)
	}

	c.drain()

	frame := req.Encode()
	c.log.WithFields(logrus.Fields{
		"feature_index": featureIndex,
		"function":      functionID,
		"sw_id":         swID,
		"frame":         hex.EncodeToString(frame),
	}).Debug("sending request")

	if _, err := c.dev.Write(frame); err != nil {
		return Report{}, &IoError{Op: "write report", Err: err}
	}

	var buf [VeryLongReportLen]byte
	for attempt := 0; attempt < txAttempts; attempt++ {
		n, err := c.dev.Read(buf[:])
		if err != nil {
			return Report{}, &IoError{Op: "read report", Err: err}
		}
		if n >= ShortReportLen {
			resp, derr := DecodeReport(buf[:n])
			if derr != nil {
				// Not a HID++ frame at all; other traffic on the node.
				c.sleep(txPollDelay)
				continue
			}

			if resp.DeviceIndex == c.deviceIndex &&
				resp.FeatureIndex == featureIndex &&
				resp.FunctionID() == functionID &&
				resp.SoftwareID() == swID {
				return resp, nil
			}

			if resp.FeatureIndex == errorReportMarker ||
				(resp.FeatureIndex == featureIndex && len(resp.Params) > 0 && resp.Params[0] == errInvalidFunction) {
				c.log.WithField("frame", hex.EncodeToString(buf[:n])).Debug("device returned error report")
				return Report{}, &ProtocolError{Detail: "device returned error report"}
			}

			// Unrelated notification (button event, battery broadcast);
			// keep polling without consuming an attempt's sleep.
			continue
		}

		c.sleep(txPollDelay)
	}

	return Report{}, ErrTimeout
}

// SendNoReply writes one request without waiting for a response. Used
// for fire-and-forget commands where latency matters more than the
// acknowledgement, such as haptic pulses.
func (c *Channel) SendNoReply(featureIndex, functionID byte, params []byte) error {
	req := ShortReport(c.deviceIndex, featureIndex, functionID, c.nextSwID(), params)
	if _, err := c.dev.Write(req.Encode()); err != nil {
		return &IoError{Op: "write report", Err: err}
	}
	return nil
}
