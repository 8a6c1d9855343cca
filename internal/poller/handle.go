package poller

import (
	"context"

	utilruntime "k8s.io/apimachinery/pkg/util/runtime"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
)

// Handle owns a running poll: its goroutine, its timer and its context.
// Release it with defer h.Cancel().
type Handle struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}

	// written by the poll goroutine before done is closed
	status *api.JobStatus
	err    error
}

// Start runs a poll in its own goroutine and returns its handle.
func Start(ctx context.Context, jobID string, fetcher Fetcher, callback Callback, opts Options) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	l := newLoop(jobID, fetcher, callback, opts.complete())
	go func() {
		defer close(h.done)
		defer cancel()
		defer utilruntime.HandleCrash()

		h.status, h.err = l.run(ctx)
	}()

	return h
}

// Poll runs a poll to completion on the calling goroutine's behalf.
func Poll(ctx context.Context, jobID string, fetcher Fetcher, callback Callback, opts Options) (*api.JobStatus, error) {
	h := Start(ctx, jobID, fetcher, callback, opts)
	defer h.Cancel()
	return h.Wait()
}

func (h *Handle) JobID() string {
	return h.jobID
}

// Stop requests cancellation without waiting for the poll to exit.
// It is safe to call from within the callback.
func (h *Handle) Stop() {
	h.cancel()
}

// Cancel stops the poll and waits for its goroutine to exit. Once Cancel
// returns the callback is never invoked again. Cancel is idempotent and must
// not be called from within the callback.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

// Done is closed when the poll has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the poll exits and returns its final status, or the error
// that ended it.
func (h *Handle) Wait() (*api.JobStatus, error) {
	<-h.done
	return h.status, h.err
}
