package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/juhradial/hidpp/internal/hid"
	"github.com/juhradial/hidpp/pkg/hidpp"
)

var featuresShowBlocked bool

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Dump the device's safety-gated feature table",
	RunE:  runFeatures,
}

func init() {
	featuresCmd.Flags().BoolVar(&featuresShowBlocked, "blocked", false, "Also print the blocklist with reasons")
}

func runFeatures(cmd *cobra.Command, args []string) error {
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

	features := dev.Features()
	ids := make([]hidpp.FeatureID, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tINDEX\tCLASS")
	for _, id := range ids {
		class, _ := hidpp.Classify(id)
		fmt.Fprintf(w, "0x%04X\t%d\t%s\n", uint16(id), features[id], class)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !featuresShowBlocked {
		return nil
	}

	blocked := hidpp.BlocklistedFeatures()
	sort.Slice(blocked, func(i, j int) bool { return blocked[i] < blocked[j] })

	fmt.Println("\nBlocklisted (never addressed):")
	for _, id := range blocked {
		reason, _ := hidpp.BlocklistReason(id)
		fmt.Printf("  0x%04X  %s\n", uint16(id), reason)
	}
	return nil
}
