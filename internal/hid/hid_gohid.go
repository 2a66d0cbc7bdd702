//go:build !usbhid

package hid

import (
	hidapi "github.com/sstallion/go-hid"
)

type gohidManager struct{}

func newManager() (Manager, error) {
	if err := hidapi.Init(); err != nil {
		return nil, err
	}
	return &gohidManager{}, nil
}

func (m *gohidManager) List(vendorID uint16) ([]Info, error) {
	var out []Info
	err := hidapi.Enumerate(vendorID, 0, func(info *hidapi.DeviceInfo) error {
		out = append(out, Info{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Product:   info.ProductStr,
			Interface: info.InterfaceNbr,
			UsagePage: info.UsagePage,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *gohidManager) Open(info Info) (Device, error) {
	d, err := hidapi.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	// Non-blocking reads: the transaction layer polls with its own
	// retry budget instead of blocking in the kernel.
	if err := d.SetNonblock(true); err != nil {
		d.Close()
		return nil, err
	}
	return &gohidDevice{d}, nil
}

type gohidDevice struct{ d *hidapi.Device }

func (d *gohidDevice) Write(p []byte) (int, error) { return d.d.Write(p) }

func (d *gohidDevice) Read(p []byte) (int, error) {
	n, err := d.d.Read(p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (d *gohidDevice) Close() error { return d.d.Close() }
