package poller_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/wait"
	clocktesting "k8s.io/utils/clock/testing"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
	"github.com/micheleDibi/StyleForge-sub000/internal/poller"
)

type fetchResult struct {
	status *api.JobStatus
	err    error
}

// scriptedFetcher replays its script; the last entry repeats forever.
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  int
	script []fetchResult
}

func newScriptedFetcher(script ...fetchResult) *scriptedFetcher {
	return &scriptedFetcher{script: script}
}

func (s *scriptedFetcher) Fetch(_ context.Context, jobID string) (*api.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	r := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	if r.status != nil {
		status := *r.status
		status.JobId = jobID
		return &status, r.err
	}
	return nil, r.err
}

func (s *scriptedFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu       sync.Mutex
	statuses []api.JobStatus
}

func (r *recorder) record(status api.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *recorder) Progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	progress := make([]int, 0, len(r.statuses))
	for _, s := range r.statuses {
		progress = append(progress, s.Progress)
	}
	return progress
}

func status(s string, progress int) fetchResult {
	return fetchResult{status: &api.JobStatus{Status: s, Progress: progress}}
}

func failure(msg string) fetchResult {
	return fetchResult{err: errors.New(msg)}
}

var _ = Describe("poller", func() {
	var (
		fc   *clocktesting.FakeClock
		rec  *recorder
		opts poller.Options
	)

	// drive steps the fake clock each time the poll waits, until the poll exits.
	drive := func(h *poller.Handle, step time.Duration) {
		Eventually(func() bool {
			select {
			case <-h.Done():
				return true
			default:
			}
			if fc.HasWaiters() {
				fc.Step(step)
			}
			return false
		}).WithTimeout(10 * time.Second).WithPolling(time.Millisecond).Should(BeTrue())
	}

	BeforeEach(func() {
		fc = clocktesting.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		rec = &recorder{}
		opts = poller.Options{
			Family:                 api.JobFamilyGeneric,
			Interval:               3 * time.Second,
			Timeout:                5 * time.Minute,
			MaxConsecutiveFailures: 3,
			Backoff:                wait.Backoff{Duration: time.Second, Factor: 2, Steps: 5},
			Clock:                  fc,
		}
	})

	Context("terminal status", func() {
		It("stops after completed and returns the final status", func() {
			fetcher := newScriptedFetcher(status("pending", 0), status("running", 40), status("completed", 100))

			h := poller.Start(context.TODO(), "job-1", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			final, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("completed"))
			Expect(final.JobId).To(Equal("job-1"))
			Expect(fetcher.Calls()).To(Equal(3))
			Expect(rec.Progress()).To(Equal([]int{0, 40, 100}))

			fc.Step(time.Minute)
			Consistently(fetcher.Calls).WithTimeout(50 * time.Millisecond).Should(Equal(3))
		})

		It("treats failed as a terminal value, not an error", func() {
			msg := "style model diverged"
			fetcher := newScriptedFetcher(status("training", 10), fetchResult{status: &api.JobStatus{Status: "failed", Error: &msg}})
			opts.Family = api.JobFamilyTraining

			h := poller.Start(context.TODO(), "job-2", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			final, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("failed"))
			Expect(final.ErrorMessage()).To(Equal(msg))
			Expect(fetcher.Calls()).To(Equal(2))
		})

		It("invokes the callback even when nothing changed", func() {
			fetcher := newScriptedFetcher(status("running", 20), status("running", 20), status("running", 20), status("completed", 100))

			h := poller.Start(context.TODO(), "job-3", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			Expect(rec.Progress()).To(Equal([]int{20, 20, 20, 100}))
		})

		It("keeps polling on unknown statuses", func() {
			fetcher := newScriptedFetcher(status("queued-somewhere", 0), status("completed", 100))

			final, err := pollWithDriver(fc, "job-4", fetcher, rec.record, opts)
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("completed"))
			Expect(fetcher.Calls()).To(Equal(2))
		})
	})

	Context("timeout", func() {
		It("fails at the deadline and stops fetching", func() {
			opts.Timeout = 10 * time.Second
			fetcher := newScriptedFetcher(status("running", 5))
			start := fc.Now()

			h := poller.Start(context.TODO(), "job-5", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			_, err := h.Wait()
			Expect(errors.Is(err, poller.ErrPollTimeout)).To(BeTrue())

			var timeoutErr *poller.TimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(timeoutErr.JobID).To(Equal("job-5"))
			Expect(timeoutErr.Elapsed).To(BeNumerically(">=", 10*time.Second))
			Expect(fc.Since(start)).To(Equal(10 * time.Second))

			// fetches at 0s, 3s, 6s and 9s
			Expect(fetcher.Calls()).To(Equal(4))
			fc.Step(time.Minute)
			Consistently(fetcher.Calls).WithTimeout(50 * time.Millisecond).Should(Equal(4))
		})
	})

	Context("cancellation", func() {
		It("delivers no callback after Cancel returns", func() {
			fetcher := newScriptedFetcher(status("running", 10))

			h := poller.Start(context.TODO(), "job-6", fetcher, rec.record, opts)
			Eventually(fc.HasWaiters).Should(BeTrue())
			fc.Step(opts.Interval)
			Eventually(rec.Count).Should(Equal(2))
			Eventually(fc.HasWaiters).Should(BeTrue())

			h.Cancel()
			for i := 0; i < 5; i++ {
				fc.Step(opts.Interval)
			}
			Consistently(rec.Count).WithTimeout(50 * time.Millisecond).Should(Equal(2))
			Expect(fetcher.Calls()).To(Equal(2))

			_, err := h.Wait()
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("is idempotent and safe after the poll ended", func() {
			fetcher := newScriptedFetcher(status("completed", 100))

			h := poller.Start(context.TODO(), "job-7", fetcher, rec.record, opts)
			<-h.Done()
			h.Cancel()
			h.Cancel()
			h.Stop()

			final, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("completed"))
		})

		It("stops when the parent context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.TODO())
			fetcher := newScriptedFetcher(status("running", 10))

			h := poller.Start(ctx, "job-8", fetcher, rec.record, opts)
			defer h.Cancel()
			Eventually(fc.HasWaiters).Should(BeTrue())
			cancel()

			_, err := h.Wait()
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("can be stopped from within the callback", func() {
			fetcher := newScriptedFetcher(status("running", 10))
			var h *poller.Handle
			ready := make(chan struct{})
			cb := func(s api.JobStatus) {
				<-ready
				rec.record(s)
				h.Stop()
			}

			h = poller.Start(context.TODO(), "job-9", fetcher, cb, opts)
			close(ready)

			_, err := h.Wait()
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(rec.Count()).To(Equal(1))
		})
	})

	Context("ordering", func() {
		It("does not fetch again before the callback returned", func() {
			fetcher := newScriptedFetcher(status("running", 10))
			release := make(chan struct{})
			entered := make(chan struct{}, 10)
			cb := func(s api.JobStatus) {
				entered <- struct{}{}
				<-release
			}

			h := poller.Start(context.TODO(), "job-10", fetcher, cb, opts)
			Eventually(entered).Should(Receive())

			fc.Step(time.Minute)
			Consistently(fetcher.Calls).WithTimeout(50 * time.Millisecond).Should(Equal(1))
			Expect(fc.HasWaiters()).To(BeFalse())

			close(release)
			Eventually(fc.HasWaiters).Should(BeTrue())
			h.Cancel()
		})
	})

	Context("fetch failures", func() {
		It("gives up after the consecutive failure budget", func() {
			fetcher := newScriptedFetcher(failure("connection refused"))

			h := poller.Start(context.TODO(), "job-11", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			_, err := h.Wait()
			Expect(errors.Is(err, poller.ErrFetchFailed)).To(BeTrue())

			var fetchErr *poller.FetchError
			Expect(errors.As(err, &fetchErr)).To(BeTrue())
			Expect(fetchErr.Failures).To(Equal(3))
			Expect(fetchErr.Unwrap().Error()).To(Equal("connection refused"))
			Expect(fetcher.Calls()).To(Equal(3))
			Expect(rec.Count()).To(Equal(0))
		})

		It("resets the budget after a successful fetch", func() {
			fetcher := newScriptedFetcher(
				failure("timeout"), failure("timeout"),
				status("running", 30),
				failure("bad gateway"), failure("bad gateway"),
				status("completed", 100),
			)

			final, err := pollWithDriver(fc, "job-12", fetcher, rec.record, opts)
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("completed"))
			Expect(fetcher.Calls()).To(Equal(6))
			Expect(rec.Progress()).To(Equal([]int{30, 100}))
		})

		It("backs off between failed fetches", func() {
			fetcher := newScriptedFetcher(failure("timeout"), failure("timeout"), status("completed", 100))
			start := fc.Now()

			final, err := pollWithDriver(fc, "job-13", fetcher, rec.record, opts)
			Expect(err).To(BeNil())
			Expect(final.Status).To(Equal("completed"))
			// 1s then 2s of backoff
			Expect(fc.Since(start)).To(Equal(3 * time.Second))
		})

		It("caps the first backoff delay for short intervals", func() {
			opts.Interval = 100 * time.Millisecond
			opts.Backoff = wait.Backoff{}
			fetcher := newScriptedFetcher(failure("timeout"), status("completed", 100))
			start := fc.Now()

			h := poller.Start(context.TODO(), "job-17", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, 100*time.Millisecond)

			_, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(fc.Since(start)).To(Equal(400 * time.Millisecond))
		})

		It("aborts on the first failure with a budget of one", func() {
			opts.MaxConsecutiveFailures = 1
			fetcher := newScriptedFetcher(failure("boom"))

			_, err := poller.Poll(context.TODO(), "job-14", fetcher, rec.record, opts)
			Expect(errors.Is(err, poller.ErrFetchFailed)).To(BeTrue())
			Expect(fetcher.Calls()).To(Equal(1))
		})

		It("counts an empty response as a failure", func() {
			opts.MaxConsecutiveFailures = 1
			fetcher := newScriptedFetcher(fetchResult{})

			_, err := poller.Poll(context.TODO(), "job-15", fetcher, rec.record, opts)
			Expect(errors.Is(err, poller.ErrEmptyResponse)).To(BeTrue())
		})
	})

	Context("jitter", func() {
		It("never shortens the interval below half", func() {
			opts.Jitter = fixedJitter(-time.Hour)
			fetcher := newScriptedFetcher(status("running", 10), status("running", 20), status("completed", 100))
			start := fc.Now()

			h := poller.Start(context.TODO(), "job-18", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, 500*time.Millisecond)

			_, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(fetcher.Calls()).To(Equal(3))
			// two waits of 1.5s
			Expect(fc.Since(start)).To(Equal(3 * time.Second))
		})

		It("lengthens the interval", func() {
			opts.Jitter = fixedJitter(time.Second)
			fetcher := newScriptedFetcher(status("running", 10), status("completed", 100))
			start := fc.Now()

			h := poller.Start(context.TODO(), "job-19", fetcher, rec.record, opts)
			defer h.Cancel()
			drive(h, time.Second)

			_, err := h.Wait()
			Expect(err).To(BeNil())
			Expect(fc.Since(start)).To(Equal(4 * time.Second))
		})
	})

	Context("options", func() {
		It("uses the family defaults", func() {
			scan := poller.DefaultOptions(api.JobFamilyScan)
			Expect(scan.Interval).To(Equal(4 * time.Second))
			Expect(scan.Timeout).To(Equal(jobs.ShortJobTimeout))

			thesis := poller.DefaultOptions(api.JobFamilyThesis)
			Expect(thesis.Interval).To(Equal(3 * time.Second))
			Expect(thesis.Timeout).To(Equal(30 * time.Minute))
			Expect(thesis.MaxConsecutiveFailures).To(Equal(poller.DefaultMaxConsecutiveFailures))
		})

		It("adapts a function into a fetcher", func() {
			f := poller.FetchFunc(func(_ context.Context, id string) (*api.JobStatus, error) {
				return &api.JobStatus{JobId: id, Status: "completed", Progress: 100}, nil
			})

			final, err := poller.Poll(context.TODO(), "job-16", f, nil, opts)
			Expect(err).To(BeNil())
			Expect(final.JobId).To(Equal("job-16"))
		})
	})
})

type fixedJitter time.Duration

func (j fixedJitter) Jitter(d time.Duration) time.Duration {
	return d + time.Duration(j)
}

func pollWithDriver(fc *clocktesting.FakeClock, jobID string, fetcher poller.Fetcher, cb poller.Callback, opts poller.Options) (*api.JobStatus, error) {
	h := poller.Start(context.TODO(), jobID, fetcher, cb, opts)
	defer h.Cancel()
	Eventually(func() bool {
		select {
		case <-h.Done():
			return true
		default:
		}
		if fc.HasWaiters() {
			fc.Step(time.Second)
		}
		return false
	}).WithTimeout(10 * time.Second).WithPolling(time.Millisecond).Should(BeTrue())
	return h.Wait()
}
