package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/karalabe/usb"
	"github.com/spf13/cobra"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

var (
	scanUSB      bool
	scanValidate bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List candidate devices",
	Long: `List HID endpoints that could carry HID++ traffic.

By default only Logitech endpoints are shown, annotated with the
transport each would use. With --validate the best candidate is opened
and pinged. With --usb the raw USB HID bus listing is printed instead,
which helps when a device enumerates but never validates.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanUSB, "usb", false, "List raw USB HID endpoints instead")
	scanCmd.Flags().BoolVar(&scanValidate, "validate", false, "Open and ping the best candidate")
}

func runScan(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	if scanUSB {
		return scanRawUSB()
	}

	mgr, err := hid.NewManager()
	if err != nil {
		return fmt.Errorf("init HID backend: %w", err)
	}

	infos, err := mgr.List(hidpp.VendorLogitech)
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No candidate devices found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tPRODUCT\tID\tIFACE\tTRANSPORT")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%04x:%04x\t%d\t%s\n",
			info.Path, info.Product, info.VendorID, info.ProductID,
			info.Interface, hidpp.TransportForProduct(info.ProductID))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !scanValidate {
		return nil
	}

	dev, err := hidpp.Open(mgr, log)
	if err != nil {
		return fmt.Errorf("no candidate validated: %w", err)
	}
	defer dev.Close()

	fmt.Printf("\nValidated: %s via %s (%d features, haptics=%v)\n",
		dev.Path(), dev.Transport(), len(dev.Features()), dev.HapticSupported())
	return nil
}

// scanRawUSB prints the bus-level view. Useful when the hidraw node
// exists but no candidate validates; the raw listing shows which
// interfaces the kernel actually exposed.
func scanRawUSB() error {
	if !usb.Supported() {
		return fmt.Errorf("raw USB enumeration not supported on this platform")
	}

	devices, err := usb.EnumerateHid(0, 0)
	if err != nil {
		return fmt.Errorf("usb enumerate: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("No USB HID endpoints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tID\tIFACE\tUSAGE PAGE\tMANUFACTURER\tPRODUCT")
	for _, d := range devices {
		product := d.Product
		if strings.TrimSpace(product) == "" {
			product = "-"
		}
		fmt.Fprintf(w, "%s\t%04x:%04x\t%d\t0x%04x\t%s\t%s\n",
			d.Path, d.VendorID, d.ProductID, d.Interface, d.UsagePage,
			d.Manufacturer, product)
	}
	return w.Flush()
}
