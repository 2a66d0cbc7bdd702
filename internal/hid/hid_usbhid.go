//go:build usbhid

package hid

import (
	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func newManager() (Manager, error) { return &usbManager{}, nil }

func (m *usbManager) List(vendorID uint16) ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		if vendorID != 0 && d.VendorId() != vendorID {
			continue
		}
		out = append(out, Info{
			Path:      d.Path(),
			VendorID:  d.VendorId(),
			ProductID: d.ProductId(),
			Product:   d.Product(),
			Interface: -1,
		})
	}
	return out, nil
}

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, err
	}
	dev := &usbDevice{d: d}
	// GetInputReport blocks until a report arrives, which would break
	// the Read contract (0 bytes when none pending). The pump keeps a
	// goroutine parked in it instead, so Read stays non-blocking.
	dev.pump = newPump(dev.nextReport)
	return dev, nil
}

type usbDevice struct {
	d    *usbhid.Device
	pump *pump
}

func (d *usbDevice) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	// p includes the report ID at p[0]
	if err := d.d.SetOutputReport(p[0], p[1:]); err != nil {
		return 0, err
	}
	return len(p), nil
}

// nextReport performs one blocking read and re-prefixes the report ID,
// which is the HID++ report type tag.
func (d *usbDevice) nextReport() ([]byte, error) {
	id, buf, err := d.d.GetInputReport()
	if err != nil {
		return nil, err
	}
	frame := make([]byte, len(buf)+1)
	frame[0] = id
	copy(frame[1:], buf)
	return frame, nil
}

func (d *usbDevice) Read(p []byte) (int, error) { return d.pump.Read(p) }

func (d *usbDevice) Close() error { return d.d.Close() }
