package view

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/estimator"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
	"github.com/micheleDibi/StyleForge-sub000/internal/poller"
)

var ErrNothingToRetry = errors.New("no job has been watched yet")

// Listener is notified of every snapshot change. Listeners run sequentially
// and must not call Watch, Retry or Close.
type Listener func(Snapshot)

// JobStatusView binds a poll to a progress estimator and exposes the result
// as a small state machine: idle -> polling -> completed | failed | timed_out |
// errored | cancelled.
type JobStatusView struct {
	fetcher poller.Fetcher
	opts    poller.Options
	clock   clock.PassiveClock
	log     *zap.SugaredLogger

	// watchLock serializes Watch and Close so at most one poll is ever running
	watchLock sync.Mutex
	// notifyLock serializes snapshot publication so listeners see them in order
	notifyLock sync.Mutex

	lock       sync.Mutex
	snapshot   Snapshot
	estimator  *estimator.Estimator
	handle     *poller.Handle
	finished   chan struct{}
	generation int
	listeners  []Listener
}

func New(fetcher poller.Fetcher, opts poller.Options) *JobStatusView {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Family == "" {
		opts.Family = api.JobFamilyGeneric
	}
	if opts.Classify == nil {
		opts.Classify = jobs.Classifier(opts.Family)
	}
	return &JobStatusView{
		fetcher:  fetcher,
		opts:     opts,
		clock:    opts.Clock,
		log:      zap.S().Named("view"),
		snapshot: Snapshot{Family: opts.Family, State: StateIdle},
	}
}

func (v *JobStatusView) Subscribe(l Listener) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.listeners = append(v.listeners, l)
}

func (v *JobStatusView) Snapshot() Snapshot {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.snapshot
}

// Watch starts polling jobID with a fresh progress state. A watch already in
// progress is cancelled first.
func (v *JobStatusView) Watch(ctx context.Context, jobID string) {
	v.watchLock.Lock()
	defer v.watchLock.Unlock()

	v.stopCurrent()

	v.notifyLock.Lock()
	v.lock.Lock()
	v.generation++
	generation := v.generation
	v.estimator = estimator.New()
	v.snapshot = Snapshot{
		JobID:     jobID,
		Family:    v.opts.Family,
		State:     StatePolling,
		UpdatedAt: v.clock.Now(),
	}
	finished := make(chan struct{})
	v.finished = finished
	snapshot, listeners := v.snapshot, v.copyListeners()
	v.lock.Unlock()
	notify(listeners, snapshot)
	v.notifyLock.Unlock()

	v.log.Debugw("watching job", "job_id", jobID, "family", v.opts.Family)

	h := poller.Start(ctx, jobID, v.fetcher, func(status api.JobStatus) {
		v.onStatus(generation, status)
	}, v.opts)

	v.lock.Lock()
	v.handle = h
	v.lock.Unlock()

	go func() {
		defer close(finished)
		status, err := h.Wait()
		v.onFinish(generation, status, err)
	}()
}

// Retry watches the last job again from a fresh progress state.
func (v *JobStatusView) Retry(ctx context.Context) error {
	jobID := v.Snapshot().JobID
	if jobID == "" {
		return ErrNothingToRetry
	}
	v.Watch(ctx, jobID)
	return nil
}

// Wait blocks until the current watch has ended and returns its last snapshot.
func (v *JobStatusView) Wait() Snapshot {
	v.lock.Lock()
	finished := v.finished
	v.lock.Unlock()

	if finished != nil {
		<-finished
	}
	return v.Snapshot()
}

// Close cancels the current watch, if any, and waits for it to end.
func (v *JobStatusView) Close() {
	v.watchLock.Lock()
	defer v.watchLock.Unlock()

	v.stopCurrent()
}

func (v *JobStatusView) stopCurrent() {
	v.lock.Lock()
	h, finished := v.handle, v.finished
	v.lock.Unlock()

	if h != nil {
		h.Cancel()
	}
	if finished != nil {
		<-finished
	}
}

func (v *JobStatusView) onStatus(generation int, status api.JobStatus) {
	v.notifyLock.Lock()
	defer v.notifyLock.Unlock()

	v.lock.Lock()
	if generation != v.generation {
		v.lock.Unlock()
		return
	}

	now := v.clock.Now()
	v.estimator.Observe(status.Progress, now)

	s := v.snapshot
	s.Status = &status
	s.UpdatedAt = now
	if remaining, ok := v.estimator.Remaining(); ok {
		s.EstimatedSecondsRemaining = &remaining
		s.EstimatedRemaining = estimator.Format(remaining)
	}
	switch v.opts.Classify(status.Status) {
	case jobs.PhaseCompleted:
		s.State = StateCompleted
	case jobs.PhaseFailed:
		s.State = StateFailed
		s.Error = status.ErrorMessage()
	default:
		s.State = StatePolling
	}
	v.snapshot = s
	listeners := v.copyListeners()
	v.lock.Unlock()

	notify(listeners, s)
}

func (v *JobStatusView) onFinish(generation int, status *api.JobStatus, err error) {
	v.notifyLock.Lock()
	defer v.notifyLock.Unlock()

	v.lock.Lock()
	if generation != v.generation {
		v.lock.Unlock()
		return
	}

	s := v.snapshot
	switch {
	case err == nil:
		// the terminal reading already set the state
		if status != nil && !s.State.Final() {
			s.State = StateCompleted
		}
	case errors.Is(err, poller.ErrPollTimeout):
		s.State = StateTimedOut
	case errors.Is(err, poller.ErrFetchFailed):
		s.State = StateErrored
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.State = StateCancelled
	default:
		s.State = StateErrored
	}
	if err != nil {
		s.Err = err
		s.Error = err.Error()
	}
	s.UpdatedAt = v.clock.Now()
	v.snapshot = s
	v.handle = nil
	listeners := v.copyListeners()
	v.lock.Unlock()

	v.log.Debugw("watch ended", "job_id", s.JobID, "state", s.State)
	notify(listeners, s)
}

func (v *JobStatusView) copyListeners() []Listener {
	return append([]Listener(nil), v.listeners...)
}

func notify(listeners []Listener, s Snapshot) {
	for _, l := range listeners {
		l(s)
	}
}
