package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

var (
	batteryWatch    bool
	batteryInterval time.Duration
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Query battery level and charging state",
	RunE:  runBattery,
}

func init() {
	batteryCmd.Flags().BoolVarP(&batteryWatch, "watch", "w", false, "Poll continuously")
	batteryCmd.Flags().DurationVar(&batteryInterval, "interval", 2*time.Second, "Poll interval in watch mode")
}

func runBattery(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	mgr, err := hid.NewManager()
	if err != nil {
		return fmt.Errorf("init HID backend: %w", err)
	}
	dev, err := hidpp.Open(mgr, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	printReading := func() error {
		pct, charging, err := dev.QueryBattery()
		if err != nil {
			return err
		}
		state := "discharging"
		if charging {
			state = "charging"
		}
		fmt.Printf("%s  %3d%%  %s\n", time.Now().Format("15:04:05"), pct, state)
		return nil
	}

	if !batteryWatch {
		return printReading()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(batteryInterval)
	defer ticker.Stop()

	if err := printReading(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printReading(); err != nil {
				return err
			}
		}
	}
}
