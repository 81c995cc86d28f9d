package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalFlow/internal/domain/errs"
	"SignalFlow/pkg/logger"
)

// Clock returns the current instant. Components take one so tests can drive time.
type Clock func() time.Time

const restartBackoff = time.Second

// runEvery calls fn, then waits for the remaining interval slack before the next call.
// Calls never overlap. A panic or invariant error is logged and the loop restarts after
// a short backoff. It returns when ctx is done.
func runEvery(ctx context.Context, log *logger.Logger, name string, interval time.Duration, fn func(ctx context.Context) error) {
	log.Info("loop started", logger.String("loop", name), logger.Duration("interval_ms", interval))
	defer log.Info("loop stopped", logger.String("loop", name))

	for {
		start := time.Now()
		err := safeCall(ctx, fn)
		wait := interval - time.Since(start)
		if err != nil && ctx.Err() == nil {
			log.Error("loop pass failed", logger.String("loop", name), logger.Error(err))
			if errs.IsInvariant(err) || isPanic(err) {
				wait = restartBackoff
			}
		}
		if wait < 0 {
			wait = 0
		}
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

func isPanic(err error) bool {
	_, ok := err.(panicError)
	return ok
}

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{v: r}
		}
	}()
	return fn(ctx)
}

// sleepCtx waits d or until ctx is done. It reports false when ctx ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
