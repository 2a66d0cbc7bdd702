// Package hid abstracts raw HID report I/O so the protocol layer can
// run against real hardware or an in-memory mock.
package hid

// Device represents an opened raw HID endpoint capable of report I/O.
type Device interface {
	Write([]byte) (int, error) // send output report, first byte = report ID
	Read([]byte) (int, error)  // read input report; returns 0 bytes when none pending
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Product   string
	Interface int
	UsagePage uint16
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List(vendorID uint16) ([]Info, error)
	Open(info Info) (Device, error)
}

// NewManager returns the backend selected at build time.
func NewManager() (Manager, error) {
	return newManager()
}
