package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyChecker struct {
	errs  []error
	calls int
}

func (f *flakyChecker) HealthCheck(ctx context.Context) error {
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

func TestMonitorTracksStateTransitions(t *testing.T) {
	checker := &flakyChecker{errs: []error{
		nil,
		errors.New("connection refused"),
		errors.New("connection refused"),
		nil,
	}}
	m := NewEngineMonitor(checker, time.Minute)

	assert.Equal(t, EngineStateUnknown, m.Status().State)

	m.probe(context.Background())
	assert.Equal(t, EngineStateOnline, m.Status().State)
	assert.Empty(t, m.Status().LastError)

	m.probe(context.Background())
	m.probe(context.Background())
	status := m.Status()
	assert.Equal(t, EngineStateOffline, status.State)
	assert.Equal(t, int64(2), status.FailureCount)
	assert.Contains(t, status.LastError, "connection refused")

	m.probe(context.Background())
	status = m.Status()
	assert.Equal(t, EngineStateOnline, status.State)
	assert.Zero(t, status.FailureCount)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastChecked.IsZero())
}
