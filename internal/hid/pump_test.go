package hid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSource models a backend whose read call parks until the
// device produces a report.
type blockingSource struct {
	arrive chan []byte
}

func (s *blockingSource) next() ([]byte, error) {
	frame, ok := <-s.arrive
	if !ok {
		return nil, errors.New("handle closed")
	}
	return frame, nil
}

func TestPumpReadNeverBlocks(t *testing.T) {
	src := &blockingSource{arrive: make(chan []byte)}
	p := newPump(src.next)

	// The source is parked with nothing pending; Read must come back
	// immediately with 0 bytes instead of waiting on it.
	done := make(chan struct{})
	var buf [64]byte
	go func() {
		n, err := p.Read(buf[:])
		assert.NoError(t, err)
		assert.Zero(t, n)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read blocked on an idle source")
	}
}

func TestPumpDeliversQueuedFrames(t *testing.T) {
	src := &blockingSource{arrive: make(chan []byte)}
	p := newPump(src.next)

	src.arrive <- []byte{0x10, 0x01, 0x06, 0x11, 0xAA, 0x00, 0x00}

	var buf [64]byte
	var n int
	require.Eventually(t, func() bool {
		var err error
		n, err = p.Read(buf[:])
		return err == nil && n > 0
	}, time.Second, time.Millisecond)

	assert.Equal(t, 7, n)
	assert.Equal(t, byte(0x10), buf[0])
	assert.Equal(t, byte(0xAA), buf[4])

	// Drained again: back to 0 bytes, still without blocking.
	n, err := p.Read(buf[:])
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPumpSurfacesSourceFailure(t *testing.T) {
	src := &blockingSource{arrive: make(chan []byte)}
	p := newPump(src.next)

	close(src.arrive) // handle closed under the reader

	var buf [64]byte
	require.Eventually(t, func() bool {
		_, err := p.Read(buf[:])
		return err != nil
	}, time.Second, time.Millisecond)
}
