package poller

import (
	"time"

	"github.com/lthibault/jitterbug/v2"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
)

const (
	DefaultRequestTimeout         = 30 * time.Second
	DefaultMaxConsecutiveFailures = 3
	defaultBackoffDuration        = 1 * time.Second
	defaultBackoffFactor          = 2.0
	defaultBackoffSteps           = 10
	minJitteredIntervalDivisor    = 2
)

type Options struct {
	// Family selects the status vocabulary and labels the poll metrics.
	Family api.JobFamily
	// Interval is the delay between two successful fetches.
	Interval time.Duration
	// Timeout bounds the whole poll. Zero disables it.
	Timeout time.Duration
	// RequestTimeout bounds a single fetch.
	RequestTimeout time.Duration
	// MaxConsecutiveFailures is the number of failed fetches in a row after
	// which the poll gives up. 1 aborts on the first failure.
	MaxConsecutiveFailures int
	// Backoff computes the delay before retrying a failed fetch. It restarts
	// from its initial value after every successful fetch.
	Backoff wait.Backoff
	// Jitter, when set, is applied to every Interval.
	Jitter jitterbug.Jitter
	// Clock drives timers and elapsed time.
	Clock clock.Clock
	// Classify maps a status string to its phase. Defaults to the family vocabulary.
	Classify func(status string) jobs.Phase
}

// DefaultOptions returns the poll options of a job family.
func DefaultOptions(family api.JobFamily) Options {
	interval := jobs.DefaultInterval(family)
	return Options{
		Family:                 family,
		Interval:               interval,
		Timeout:                jobs.DefaultTimeout(family),
		RequestTimeout:         DefaultRequestTimeout,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		Backoff:                defaultBackoff(interval),
		Clock:                  clock.RealClock{},
		Classify:               jobs.Classifier(family),
	}
}

// complete fills every zero field with the family default.
func (o Options) complete() Options {
	if o.Family == "" {
		o.Family = api.JobFamilyGeneric
	}
	if o.Interval <= 0 {
		o.Interval = jobs.DefaultInterval(o.Family)
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if o.Backoff.Duration <= 0 {
		o.Backoff = defaultBackoff(o.Interval)
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.Classify == nil {
		o.Classify = jobs.Classifier(o.Family)
	}
	return o
}

func defaultBackoff(interval time.Duration) wait.Backoff {
	// Step hands out Duration before applying Cap
	return wait.Backoff{
		Duration: min(defaultBackoffDuration, 4*interval),
		Factor:   defaultBackoffFactor,
		Steps:    defaultBackoffSteps,
		Cap:      4 * interval,
	}
}
