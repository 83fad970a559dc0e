package infra

import (
	"context"
	"log"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Engine reachability states.
type EngineState string

const (
	EngineStateUnknown EngineState = "unknown"
	EngineStateOnline  EngineState = "online"
	EngineStateOffline EngineState = "offline"
)

// healthChecker is the slice of the engine client the monitor needs.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EngineStatus is one reachability snapshot.
type EngineStatus struct {
	State        EngineState `json:"state"`
	LastChecked  time.Time   `json:"last_checked,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	FailureCount int64       `json:"failure_count"`
}

// EngineMonitor probes the engine on a fixed interval and keeps the latest
// reachability snapshot for the status endpoint. It never starts, stops or
// restarts the engine; the engine's lifecycle is the operator's business.
type EngineMonitor struct {
	checker  healthChecker
	interval time.Duration

	mu       sync.RWMutex
	status   EngineStatus
	failures *atomic.Int64
}

// NewEngineMonitor creates a monitor probing at the given interval.
func NewEngineMonitor(checker healthChecker, interval time.Duration) *EngineMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &EngineMonitor{
		checker:  checker,
		interval: interval,
		status:   EngineStatus{State: EngineStateUnknown},
		failures: atomic.NewInt64(0),
	}
}

// Start probes once immediately, then on every tick until ctx ends.
// Meant to run on its own goroutine.
func (m *EngineMonitor) Start(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// Status returns the latest reachability snapshot.
func (m *EngineMonitor) Status() EngineStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *EngineMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.checker.HealthCheck(probeCtx)

	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.status.State
	m.status.LastChecked = time.Now()
	if err != nil {
		m.status.State = EngineStateOffline
		m.status.LastError = err.Error()
		m.status.FailureCount = m.failures.Inc()
	} else {
		m.status.State = EngineStateOnline
		m.status.LastError = ""
		m.failures.Store(0)
		m.status.FailureCount = 0
	}

	if previous != m.status.State {
		log.Printf("[EngineMonitor] Engine went %s", m.status.State)
	}
}
