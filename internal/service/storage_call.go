package service

import (
	"context"
	"time"
)

// runStorage bounds a storage call by timeout and records its latency under label.
func runStorage(ctx context.Context, timeout time.Duration, metrics *MetricsService, label string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	metrics.ObserveDBQuery(label, time.Since(start))
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// Report the deadline even when the driver surfaced a different error.
		return &deadlineError{err: err}
	}
	return err
}

type deadlineError struct {
	err error
}

func (e *deadlineError) Error() string { return e.err.Error() }

func (e *deadlineError) Unwrap() []error { return []error{e.err, context.DeadlineExceeded} }
