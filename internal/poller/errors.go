package poller

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPollTimeout   = errors.New("poll timeout")
	ErrFetchFailed   = errors.New("fetch failed")
	ErrEmptyResponse = errors.New("empty response")
)

// TimeoutError is returned when a job did not reach a terminal status
// before the configured timeout.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
	Elapsed time.Duration
}

func NewTimeoutError(jobID string, timeout, elapsed time.Duration) *TimeoutError {
	return &TimeoutError{JobID: jobID, Timeout: timeout, Elapsed: elapsed}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish within %s (elapsed %s)", e.JobID, e.Timeout, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrPollTimeout
}

// FetchError is returned once the consecutive fetch failures of a poll exceed
// its budget. Err is the last failure.
type FetchError struct {
	JobID    string
	Failures int
	Err      error
}

func NewFetchError(jobID string, failures int, err error) *FetchError {
	return &FetchError{JobID: jobID, Failures: failures, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching status of job %s failed %d consecutive times: %v", e.JobID, e.Failures, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
