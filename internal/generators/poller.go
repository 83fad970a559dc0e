package generators

import (
	"context"
	"time"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 120 // ~4 minutes ceiling
)

// PollState is the poller's observable state for one job.
type PollState string

const (
	PollPending   PollState = "pending"
	PollRunning   PollState = "running"
	PollCompleted PollState = "completed"
	PollFailed    PollState = "failed"
	PollTimedOut  PollState = "timed_out"
)

// historySource is the slice of the engine client the poller needs.
type historySource interface {
	History(ctx context.Context, jobID string) (HistoryEntry, bool, error)
}

// Poller drives a job from submission to a terminal state by querying the
// engine history at a fixed interval with a bounded attempt budget. The
// timer is injectable so tests can run all attempts without wall-clock time.
type Poller struct {
	source      historySource
	interval    time.Duration
	maxAttempts int
	after       func(time.Duration) <-chan time.Time

	// Notify, when set, observes every attempt's state.
	Notify func(state PollState, attempt int)
}

// NewPoller creates a poller with the fixed 2s/120-attempt budget.
func NewPoller(source historySource) *Poller {
	return &Poller{
		source:      source,
		interval:    defaultPollInterval,
		maxAttempts: defaultMaxPollAttempts,
		after:       time.After,
	}
}

// NewPollerWithClock creates a poller with explicit timing, for tests and
// non-default deployments.
func NewPollerWithClock(source historySource, interval time.Duration, maxAttempts int, after func(time.Duration) <-chan time.Time) *Poller {
	return &Poller{source: source, interval: interval, maxAttempts: maxAttempts, after: after}
}

// Poll blocks until the job completes, the engine reports an explicit
// failure, the attempt budget runs out, or ctx is cancelled. On completion
// it returns exactly the history entry of the completing poll.
//
// A job id absent from the result set, or present without a status block,
// counts as still pending: that is the normal shape while a job is queued
// or executing, not an error.
func (p *Poller) Poll(ctx context.Context, jobID string) (HistoryEntry, error) {
	state := PollPending
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return HistoryEntry{}, ctx.Err()
		case <-p.after(p.interval):
		}

		entry, found, err := p.source.History(ctx, jobID)
		if err != nil {
			// Transient fetch errors burn an attempt but do not abort;
			// the attempt cap bounds the total wait either way.
			p.notify(state, attempt)
			continue
		}

		switch {
		case found && entry.Status != nil && entry.Status.Completed:
			p.notify(PollCompleted, attempt)
			return entry, nil
		case found && entry.Status != nil && entry.Status.StatusStr == "error":
			p.notify(PollFailed, attempt)
			return HistoryEntry{}, &EngineFailureError{JobID: jobID, Status: entry.Status.StatusStr}
		case found && entry.Status != nil:
			state = PollRunning
		default:
			// Absent from the result set, or present without a status
			// block yet: the job is still queued.
			state = PollPending
		}
		p.notify(state, attempt)
	}

	p.notify(PollTimedOut, p.maxAttempts)
	return HistoryEntry{}, ErrPollTimeout
}

func (p *Poller) notify(state PollState, attempt int) {
	if p.Notify != nil {
		p.Notify(state, attempt)
	}
}
