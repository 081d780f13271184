// Package faults defines the error taxonomy shared by the ingestion and
// query pipeline. External failures are classified into one of these
// sentinels at the API boundary so callers can decide on retry behavior
// with errors.Is instead of string matching.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks fatal misconfiguration (missing credentials,
	// dimension mismatch, invalid chunking parameters). Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransient marks failures worth retrying (network hiccup, timeout,
	// 5xx responses).
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited marks 429-class rejections. Retried like transient
	// failures but with a more conservative backoff schedule.
	ErrRateLimited = errors.New("rate limited")

	// ErrPermanent marks failures that will not succeed on retry: 4xx
	// rejections and exhausted retry budgets.
	ErrPermanent = errors.New("permanent failure")
)

// BatchError reports an embedding sub-batch that exhausted its retry budget.
// Start and End are the half-open input range [Start, End) of the failed
// texts, so the caller can isolate the batch instead of aborting the run.
type BatchError struct {
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d-%d: %v", e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
