package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/novanet/novanet/log"
)

// ThresholdMonitor watches, over a rolling period, how many distinct
// peers reported a connection failure, and logs at increasing severity
// as that count crosses a threshold. Grounded on the teacher's
// ThresholdMonitor (tracking failed-partial-signature peers per beacon
// ID), generalised from "failed partial-beacon sends for one beacon ID"
// to "failed comm sessions for one section prefix". The dysfunction
// detector (spec §4.J) decides *which* peer is at fault; this only
// watches for the section-wide pattern of many peers failing at once.
type ThresholdMonitor struct {
	lock      sync.RWMutex
	log       log.Logger
	prefix    string
	threshold int
	failures  map[string]bool
	ctx       context.Context
	cancel    func()
	period    time.Duration
}

// NewThresholdMonitor builds a monitor for the section identified by
// prefix, flagging when threshold distinct peers fail within one period.
func NewThresholdMonitor(prefix string, l log.Logger, threshold int) *ThresholdMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ThresholdMonitor{
		log:       l,
		prefix:    prefix,
		threshold: threshold,
		failures:  make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
		period:    time.Minute,
	}
}

// Start runs the monitor's periodic sweep in a background goroutine
// until Stop is called.
func (t *ThresholdMonitor) Start() {
	t.log.Info("threshold_monitor_start", "prefix", t.prefix)

	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-t.ctx.Done():
				t.log.Info("threshold_monitor_stop", "prefix", t.prefix)
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

func (t *ThresholdMonitor) sweep() {
	t.lock.Lock()
	var failing []string
	for peer := range t.failures {
		failing = append(failing, peer)
	}
	t.failures = make(map[string]bool)
	t.lock.Unlock()

	switch {
	case len(failing) >= t.threshold:
		t.log.Error("threshold_monitor", "prefix", t.prefix, "threshold", t.threshold,
			"failures", len(failing), "peers", strings.Join(failing, ","))
	case len(failing) >= t.threshold/2:
		t.log.Warn("threshold_monitor", "prefix", t.prefix, "threshold", t.threshold,
			"failures", len(failing), "peers", strings.Join(failing, ","))
	default:
		t.log.Debug("threshold_monitor", "prefix", t.prefix, "threshold", t.threshold,
			"failures", len(failing), "peers", strings.Join(failing, ","))
	}
}

// Stop ends the monitor's background sweep.
func (t *ThresholdMonitor) Stop() {
	t.cancel()
}

// ReportFailure records a comm-session failure for peer within the
// current period.
func (t *ThresholdMonitor) ReportFailure(peer string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.failures[peer] = true
}

// UpdateThreshold changes the failure count that triggers an Error log.
func (t *ThresholdMonitor) UpdateThreshold(newThreshold int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.threshold = newThreshold
}
