package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/haptics"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

var pulseIntensity int

var pulseCmd = &cobra.Command{
	Use:   "pulse <event>",
	Short: "Emit one haptic feedback event",
	Long: `Emit one haptic feedback event on the connected mouse.

Events: menu_appear, slice_change, selection_confirm, invalid_action.
The event's base profile is scaled by --intensity.`,
	Args: cobra.ExactArgs(1),
	RunE: runPulse,
}

func init() {
	pulseCmd.Flags().IntVarP(&pulseIntensity, "intensity", "i", 50, "Global intensity scale, percent")
}

func runPulse(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	event, ok := haptics.EventByName(strings.ToLower(args[0]))
	if !ok {
		return fmt.Errorf("unknown event %q", args[0])
	}

	mgr, err := hid.NewManager()
	if err != nil {
		return fmt.Errorf("init HID backend: %w", err)
	}

	settings := haptics.DefaultSettings()
	settings.Intensity = pulseIntensity
	// No debounce for a one-shot invocation.
	settings.Debounce = 0

	sched := haptics.NewScheduler(func() (*hidpp.Device, error) {
		return hidpp.Open(mgr, log)
	}, settings, log)
	defer sched.Close()

	ok, err = sched.Connect()
	if err != nil {
		return err
	}
	if !ok {
		return hidpp.ErrDeviceNotFound
	}

	sched.Emit(event)
	fmt.Printf("emitted %s\n", event)
	return nil
}
