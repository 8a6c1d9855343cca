package estimator

import (
	"fmt"
	"math"
	"time"
)

const maxProgress = 100

// Estimator projects the remaining time of a job from its last two forward
// progress samples. It keeps the last estimate until a new forward sample
// arrives. An Estimator belongs to one watch and is not safe for concurrent use.
type Estimator struct {
	seeded       bool
	lastProgress int
	lastUpdate   time.Time

	hasEstimate bool
	remaining   int
}

func New() *Estimator {
	return &Estimator{}
}

// Observe feeds a progress sample and returns the new estimate in seconds.
// The boolean is false when the sample produced no new estimate, in which case
// the previous one (if any) is still reported by Remaining.
func (e *Estimator) Observe(progress int, at time.Time) (int, bool) {
	progress = clamp(progress)

	if !e.seeded {
		e.seeded = true
		e.lastProgress = progress
		e.lastUpdate = at
		return 0, false
	}

	// no forward delta: keep the stale estimate and the old reference point
	if progress <= e.lastProgress {
		return 0, false
	}

	remaining, ok := Estimate(e.lastProgress, e.lastUpdate, progress, at)
	e.lastProgress = progress
	e.lastUpdate = at
	if !ok {
		return 0, false
	}

	e.remaining = remaining
	e.hasEstimate = true
	return remaining, true
}

// Remaining returns the retained estimate in seconds.
func (e *Estimator) Remaining() (int, bool) {
	return e.remaining, e.hasEstimate
}

// RemainingText returns the formatted estimate or an empty string.
func (e *Estimator) RemainingText() string {
	if !e.hasEstimate {
		return ""
	}
	return Format(e.remaining)
}

func (e *Estimator) LastProgress() int {
	return e.lastProgress
}

func (e *Estimator) LastUpdate() time.Time {
	return e.lastUpdate
}

func (e *Estimator) Reset() {
	*e = Estimator{}
}

// Estimate computes the remaining seconds from two samples:
// rate = Δprogress / elapsed, remaining = ceil((100 - progress) / rate).
// It reports false when there is no forward delta or no elapsed time.
func Estimate(prevProgress int, prevAt time.Time, progress int, at time.Time) (int, bool) {
	prevProgress = clamp(prevProgress)
	progress = clamp(progress)

	delta := progress - prevProgress
	if delta <= 0 {
		return 0, false
	}
	elapsed := at.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return 0, false
	}

	// (100 - p) / (Δ / elapsed), rearranged to keep the division last
	remaining := math.Ceil(float64(maxProgress-progress) * elapsed / float64(delta))
	if remaining < 0 {
		return 0, true
	}
	return int(remaining), true
}

// Format renders remaining seconds as ~Ns, ~Nm [Ss] or ~Nh [Mm].
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("~%ds", seconds)
	case seconds < 3600:
		minutes, rest := seconds/60, seconds%60
		if rest == 0 {
			return fmt.Sprintf("~%dm", minutes)
		}
		return fmt.Sprintf("~%dm %ds", minutes, rest)
	default:
		hours, minutes := seconds/3600, (seconds%3600)/60
		if minutes == 0 {
			return fmt.Sprintf("~%dh", hours)
		}
		return fmt.Sprintf("~%dh %dm", hours, minutes)
	}
}

// FormatDuration formats d rounded up to the next whole second.
func FormatDuration(d time.Duration) string {
	return Format(int(math.Ceil(d.Seconds())))
}

func clamp(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > maxProgress {
		return maxProgress
	}
	return progress
}
