package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/battery"
	"github.com/juhradial/hidpp/pkg/config"
	"github.com/juhradial/hidpp/pkg/haptics"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge as a long-lived session",
	Long: `Run the bridge as a long-lived session: connect to the mouse,
poll its battery, and reconnect automatically when it drops. Haptic
events are accepted over the scheduler held by this process.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "Config file (default: per-user config dir)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	path := runConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log.WithField("path", path).Info("configuration loaded")

	mgr, err := hid.NewManager()
	if err != nil {
		return fmt.Errorf("init HID backend: %w", err)
	}

	sched := haptics.NewScheduler(func() (*hidpp.Device, error) {
		return hidpp.Open(mgr, log)
	}, cfg.HapticSettings(), log)
	defer sched.Close()

	if ok, err := sched.Connect(); err != nil {
		return err
	} else if !ok {
		log.Info("no device yet, waiting for one to appear")
	}

	probe := battery.NewProbe(sched, log)
	probe.Interval = cfg.BatteryInterval()
	probe.ConflictProcess = cfg.Battery.ConflictProcess

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go probe.Run(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
			sched.ReconnectIfNeeded()
		}
	}
}
