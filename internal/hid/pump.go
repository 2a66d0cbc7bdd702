package hid

import "sync"

// pump adapts a blocking one-report-per-call input stream to the
// non-blocking Read contract of Device. A background goroutine stays
// parked in the blocking call and queues arriving frames, so Read
// always returns immediately: a frame if one is pending, 0 bytes
// otherwise.
type pump struct {
	frames chan []byte

	mu  sync.Mutex
	err error
}

// newPump starts draining next in the background. The goroutine exits
// when next fails, which closing the underlying handle guarantees.
func newPump(next func() ([]byte, error)) *pump {
	p := &pump{frames: make(chan []byte, 32)}
	go p.run(next)
	return p
}

func (p *pump) run(next func() ([]byte, error)) {
	for {
		frame, err := next()
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			close(p.frames)
			return
		}
		select {
		case p.frames <- frame:
		default:
			// Queue full: nothing has read for 32 frames, so these
			// are unconsumed notifications, not awaited responses.
		}
	}
}

func (p *pump) Read(buf []byte) (int, error) {
	select {
	case frame, ok := <-p.frames:
		if !ok {
			p.mu.Lock()
			defer p.mu.Unlock()
			return 0, p.err
		}
		return copy(buf, frame), nil
	default:
		return 0, nil
	}
}
