package hidpp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juhradial/hidpp/internal/hid"
)

// echoResponder answers every request with a short response carrying
// the given params, mirroring the request's addressing and software ID.
func echoResponder(params []byte) func([]byte) [][]byte {
	return func(req []byte) [][]byte {
		r, err := DecodeReport(req)
		if err != nil {
			return nil
		}
		resp := ShortReport(r.DeviceIndex, r.FeatureIndex, r.FunctionID(), r.SoftwareID(), params)
		return [][]byte{resp.Encode()}
	}
}

func testChannel(dev *hid.MockDevice) *Channel {
	ch := NewChannel(dev, DeviceIndexReceiver, quietLogger())
	ch.sleep = func(time.Duration) {}
	return ch
}

func TestSendReceivesMatchingResponse(t *testing.T) {
	dev := &hid.MockDevice{Respond: echoResponder([]byte{0x64, 0x00, 0x01})}
	ch := testChannel(dev)

	resp, err := ch.Send(0x06, 0x00, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x06), resp.FeatureIndex)
	assert.Equal(t, []byte{0x64, 0x00, 0x01}, resp.Params)
	require.Len(t, dev.Writes, 1)
	assert.Equal(t, ReportTypeShort, dev.Writes[0][0])
}

func TestSendDrainsStaleData(t *testing.T) {
	dev := &hid.MockDevice{Respond: echoResponder([]byte{0x01, 0x02, 0x03})}
	// Stale notification from earlier traffic that would otherwise be
	// misread as the response.
	stale := ShortReport(DeviceIndexReceiver, 0x06, 0x00, 0x09, []byte{0xDE, 0xAD, 0x00})
	dev.Enqueue(stale.Encode())

	ch := testChannel(dev)
	resp, err := ch.Send(0x06, 0x00, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, resp.Params)
	assert.Zero(t, dev.Pending())
}

func TestSendSkipsUnrelatedNotifications(t *testing.T) {
	dev := &hid.MockDevice{}
	dev.Respond = func(req []byte) [][]byte {
		r, _ := DecodeReport(req)
		noise := ShortReport(r.DeviceIndex, 0x03, 0x02, 0x00, []byte{0xFF, 0xFF, 0xFF})
		reply := ShortReport(r.DeviceIndex, r.FeatureIndex, r.FunctionID(), r.SoftwareID(), []byte{0x2A, 0, 0})
		return [][]byte{noise.Encode(), reply.Encode()}
	}

	ch := testChannel(dev)
	resp, err := ch.Send(0x06, 0x01, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), resp.Params[0])
}

func TestSendErrorReport(t *testing.T) {
	dev := &hid.MockDevice{}
	dev.Respond = func(req []byte) [][]byte {
		r, _ := DecodeReport(req)
		errFrame := ShortReport(r.DeviceIndex, errorReportMarker, 0, 0, []byte{r.FeatureIndex, 0x01, 0x00})
		return [][]byte{errFrame.Encode()}
	}

	ch := testChannel(dev)
	_, err := ch.Send(0x06, 0x01, nil)

	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
}

func TestSendTimeout(t *testing.T) {
	dev := &hid.MockDevice{} // never responds
	ch := testChannel(dev)

	_, err := ch.Send(0x06, 0x00, nil)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendWriteFailure(t *testing.T) {
	dev := &hid.MockDevice{WriteErr: errors.New("unplugged")}
	ch := testChannel(dev)

	_, err := ch.Send(0x06, 0x00, nil)
	var ioErr *IoError
	require.True(t, errors.As(err, &ioErr))
}

func TestSoftwareIDRotation(t *testing.T) {
	dev := &hid.MockDevice{Respond: echoResponder(nil)}
	ch := testChannel(dev)

	// 1..15, then wrap back to 1.
	for i := 0; i < 16; i++ {
		_, err := ch.Send(0x01, 0x00, nil)
		require.NoError(t, err)
	}

	require.Len(t, dev.Writes, 16)
	for i := 0; i < 15; i++ {
		assert.Equal(t, byte(i+1), dev.Writes[i][3]&0x0F)
	}
	assert.Equal(t, byte(1), dev.Writes[15][3]&0x0F)
}

func TestLongRequestForWideParams(t *testing.T) {
	dev := &hid.MockDevice{Respond: echoResponder(nil)}
	ch := testChannel(dev)

	_, err := ch.Send(0x04, 0x02, []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Len(t, dev.Writes, 1)
	assert.Equal(t, ReportTypeLong, dev.Writes[0][0])
	assert.Len(t, dev.Writes[0], LongReportLen)
}

func TestSendNoReply(t *testing.T) {
	dev := &hid.MockDevice{}
	ch := testChannel(dev)

	require.NoError(t, ch.SendNoReply(0x09, 0x00, []byte{50, 0x00, 0x19}))
	require.Len(t, dev.Writes, 1)
	assert.Equal(t, byte(0x09), dev.Writes[0][2])
	// No reads are attempted, so a silent device does not stall the caller.
	assert.Zero(t, dev.Pending())
}
