// Package battery polls a device's battery on an interval and caches
// the last observation. The probe backs off when a conflicting HID
// daemon owns the device, and throttles its own failure logging so a
// mouse left in a drawer does not fill the journal.
package battery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Source answers battery queries. *haptics.Scheduler satisfies it.
type Source interface {
	QueryBattery() (percentage int, charging bool, err error)
}

// State is the last battery observation. Err describes why no reading
// is available (query failure or a conflicting process); Available is
// false until a query has succeeded since the last disconnect.
type State struct {
	Percentage         int
	Charging           bool
	Available          bool
	Err                error
	ConflictingProcess bool
}

const (
	// DefaultInterval between battery queries.
	DefaultInterval = 2 * time.Second
	// DefaultConflictProcess is the daemon whose presence means the
	// device node is contended and queries would race its traffic.
	DefaultConflictProcess = "logid"

	// conflictRecheckCycles is how many poll cycles pass between
	// re-checks while a conflict is active.
	conflictRecheckCycles = 15
	// failureLogLimit caps consecutive failure log lines before the
	// probe goes quiet.
	failureLogLimit = 3
)

// Probe polls a Source on a fixed interval. Interval and
// ConflictProcess may be adjusted before Run is called.
type Probe struct {
	Interval        time.Duration
	ConflictProcess string

	src Source
	log *logrus.Logger

	mu    sync.RWMutex
	state State

	conflictActive   bool
	cyclesSinceCheck int
	failures         int

	// processNames lists running process names; replaced in tests.
	processNames func() []string
}

// NewProbe returns a probe with default interval and conflict
// settings. Run starts polling.
func NewProbe(src Source, log *logrus.Logger) *Probe {
	if log == nil {
		log = logrus.New()
	}
	return &Probe{
		Interval:        DefaultInterval,
		ConflictProcess: DefaultConflictProcess,
		src:             src,
		log:             log,
		processNames:    listProcessNames,
	}
}

// State returns a copy of the last observation.
func (p *Probe) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Run polls until ctx is cancelled. The first query fires immediately
// so callers see a reading without waiting a full interval.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Probe) tick() {
	if p.conflictBlocked() {
		p.mu.Lock()
		p.state.ConflictingProcess = true
		p.state.Available = false
		p.state.Err = fmt.Errorf("conflicting process %s owns the device", p.ConflictProcess)
		p.mu.Unlock()
		return
	}

	pct, charging, err := p.src.QueryBattery()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.ConflictingProcess = false
	if err != nil {
		p.state.Available = false
		p.state.Err = err
		p.logFailure(err)
		return
	}
	if p.failures > failureLogLimit {
		p.log.Info("battery queries recovered")
	}
	p.failures = 0
	p.state = State{Percentage: pct, Charging: charging, Available: true}
}

// conflictBlocked reports whether queries should be skipped this
// cycle. While a conflict is active the process table is only
// re-scanned every conflictRecheckCycles cycles; scanning it on every
// tick would cost more than the query it guards.
func (p *Probe) conflictBlocked() bool {
	if p.ConflictProcess == "" {
		return false
	}
	if p.conflictActive {
		p.cyclesSinceCheck++
		if p.cyclesSinceCheck < conflictRecheckCycles {
			return true
		}
		p.cyclesSinceCheck = 0
		p.conflictActive = p.conflictPresent()
		if !p.conflictActive {
			p.log.WithField("process", p.ConflictProcess).
				Info("conflicting process gone, resuming battery queries")
		}
		return p.conflictActive
	}
	if p.conflictPresent() {
		p.conflictActive = true
		p.cyclesSinceCheck = 0
		p.log.WithField("process", p.ConflictProcess).
			Warn("conflicting process detected, pausing battery queries")
		return true
	}
	return false
}

func (p *Probe) conflictPresent() bool {
	for _, name := range p.processNames() {
		if name == p.ConflictProcess {
			return true
		}
	}
	return false
}

// logFailure emits up to failureLogLimit consecutive warnings, then
// one notice that further failures are suppressed.
func (p *Probe) logFailure(err error) {
	p.failures++
	switch {
	case p.failures <= failureLogLimit:
		p.log.WithError(err).Warn("battery query failed")
	case p.failures == failureLogLimit+1:
		p.log.Info("battery queries still failing, suppressing further warnings")
	}
}

// listProcessNames reads the comm entry of every process in /proc.
// Unreadable entries are skipped; a restricted or absent /proc just
// yields an empty list and conflict detection degrades to off.
func listProcessNames() []string {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || !isNumeric(e.Name()) {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		names = append(names, strings.TrimSpace(string(comm)))
	}
	return names
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
