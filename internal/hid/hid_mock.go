package hid

import (
	"sync"
)

// MockDevice is an in-memory Device. Responses are produced by the
// Respond callback from each written request and queued for Read,
// which behaves like a non-blocking endpoint (0 bytes when empty).
type MockDevice struct {
	mu    sync.Mutex
	queue [][]byte

	// Writes records every report written, in order.
	Writes [][]byte
	// Respond maps a written request to zero or more input reports.
	Respond func(req []byte) [][]byte
	// WriteErr / ReadErr force the next I/O call to fail.
	WriteErr error
	ReadErr  error
	// Closed is set once Close has been called.
	Closed bool
}

func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	req := append([]byte(nil), p...)
	m.Writes = append(m.Writes, req)
	if m.Respond != nil {
		m.queue = append(m.queue, m.Respond(req)...)
	}
	return len(p), nil
}

func (m *MockDevice) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if len(m.queue) == 0 {
		return 0, nil
	}
	n := copy(p, m.queue[0])
	m.queue = m.queue[1:]
	return n, nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Enqueue appends input reports without a preceding write, simulating
// unsolicited device notifications or stale buffered data.
func (m *MockDevice) Enqueue(reports ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range reports {
		m.queue = append(m.queue, append([]byte(nil), r...))
	}
}

// Pending reports the number of queued, unread input reports.
func (m *MockDevice) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// MockManager serves a fixed candidate list from memory.
type MockManager struct {
	Infos   []Info
	Devices map[string]Device // keyed by Info.Path
	OpenErr map[string]error
}

func (m *MockManager) List(vendorID uint16) ([]Info, error) {
	var out []Info
	for _, info := range m.Infos {
		if vendorID != 0 && info.VendorID != vendorID {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (m *MockManager) Open(info Info) (Device, error) {
	if err, ok := m.OpenErr[info.Path]; ok {
		return nil, err
	}
	d, ok := m.Devices[info.Path]
	if !ok {
		return nil, errNoSuchDevice
	}
	return d, nil
}

type mockErr string

func (e mockErr) Error() string { return string(e) }

const errNoSuchDevice = mockErr("mock: no such device")
