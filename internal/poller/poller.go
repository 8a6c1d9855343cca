package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
	"github.com/micheleDibi/StyleForge-sub000/pkg/metrics"
)

// Fetcher reads the current status of a job.
type Fetcher interface {
	Fetch(ctx context.Context, jobID string) (*api.JobStatus, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, jobID string) (*api.JobStatus, error)

func (f FetchFunc) Fetch(ctx context.Context, jobID string) (*api.JobStatus, error) {
	return f(ctx, jobID)
}

// Callback receives every status read by the poll, changed or not.
type Callback func(status api.JobStatus)

type loop struct {
	jobID    string
	fetcher  Fetcher
	callback Callback
	opts     Options
	log      *zap.SugaredLogger

	// unknown status values already reported
	unknown map[string]struct{}
}

func newLoop(jobID string, fetcher Fetcher, callback Callback, opts Options) *loop {
	return &loop{
		jobID:    jobID,
		fetcher:  fetcher,
		callback: callback,
		opts:     opts,
		log:      zap.S().Named("poller").With("job_id", jobID, "family", opts.Family),
		unknown:  map[string]struct{}{},
	}
}

// run fetches until a terminal status, the timeout, the failure budget or
// the context ends the poll. The first fetch happens immediately.
func (l *loop) run(ctx context.Context) (*api.JobStatus, error) {
	family := string(l.opts.Family)
	start := l.opts.Clock.Now()
	var deadline time.Time
	if l.opts.Timeout > 0 {
		deadline = start.Add(l.opts.Timeout)
	}

	metrics.IncreaseActivePolls(family)
	defer metrics.DecreaseActivePolls(family)

	nextBackoff := l.opts.Backoff.DelayFunc()
	failures := 0

	l.log.Debugf("polling every %s (timeout %s)", l.opts.Interval, l.opts.Timeout)

	for tick := 1; ; tick++ {
		if err := ctx.Err(); err != nil {
			metrics.IncreasePollOutcome(family, metrics.OutcomeCancelled)
			return nil, err
		}
		if !deadline.IsZero() && !l.opts.Clock.Now().Before(deadline) {
			elapsed := l.opts.Clock.Since(start)
			l.log.Warnf("giving up after %s without a terminal status", elapsed)
			metrics.IncreasePollOutcome(family, metrics.OutcomeTimedOut)
			return nil, NewTimeoutError(l.jobID, l.opts.Timeout, elapsed)
		}

		var delay time.Duration
		status, err := l.fetch(ctx)
		switch {
		case ctx.Err() != nil:
			// a reading that lands after cancellation is never delivered
			metrics.IncreasePollOutcome(family, metrics.OutcomeCancelled)
			return nil, ctx.Err()
		case err != nil:
			failures++
			metrics.IncreaseFetchMetric(family, metrics.FetchError)
			if failures >= l.opts.MaxConsecutiveFailures {
				l.log.Errorf("tick %d: fetch failed %d consecutive times: %v", tick, failures, err)
				metrics.IncreasePollOutcome(family, metrics.OutcomeErrored)
				return nil, NewFetchError(l.jobID, failures, err)
			}
			delay = nextBackoff()
			l.log.Warnf("tick %d: fetch failed (%d/%d), retrying in %s: %v", tick, failures, l.opts.MaxConsecutiveFailures, delay, err)
		default:
			metrics.IncreaseFetchMetric(family, metrics.FetchSuccess)
			if failures > 0 {
				failures = 0
				nextBackoff = l.opts.Backoff.DelayFunc()
			}

			if l.callback != nil {
				l.callback(*status)
			}

			phase := l.opts.Classify(status.Status)
			if phase.Terminal() {
				l.log.Debugf("tick %d: job reached terminal status %q", tick, status.Status)
				metrics.IncreasePollOutcome(family, phase.String())
				return status, nil
			}
			l.reportUnknown(phase, status.Status)
			delay = l.interval()
		}

		if err := l.wait(ctx, delay, deadline); err != nil {
			metrics.IncreasePollOutcome(family, metrics.OutcomeCancelled)
			return nil, err
		}
	}
}

func (l *loop) fetch(ctx context.Context) (*api.JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.RequestTimeout)
	defer cancel()

	status, err := l.fetcher.Fetch(ctx, l.jobID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrEmptyResponse
	}
	return status, nil
}

// interval returns the delay before the next tick. Jitter never shortens it
// below half of Interval.
func (l *loop) interval() time.Duration {
	d := l.opts.Interval
	if l.opts.Jitter != nil {
		d = l.opts.Jitter.Jitter(d)
	}
	if floor := l.opts.Interval / minJitteredIntervalDivisor; d < floor {
		return floor
	}
	return d
}

// wait sleeps for delay, clipped to the deadline so a timeout is reported on time.
func (l *loop) wait(ctx context.Context, delay time.Duration, deadline time.Time) error {
	if !deadline.IsZero() {
		if remaining := deadline.Sub(l.opts.Clock.Now()); remaining < delay {
			delay = remaining
		}
	}
	if delay <= 0 {
		return ctx.Err()
	}

	t := l.opts.Clock.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

func (l *loop) reportUnknown(phase jobs.Phase, status string) {
	if phase != jobs.PhaseUnknown {
		return
	}
	if _, seen := l.unknown[status]; seen {
		return
	}
	l.unknown[status] = struct{}{}
	l.log.Warnf("unknown status %q, treating it as non-terminal", status)
}
