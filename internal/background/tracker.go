// Package background runs work that must outlive the request that scheduled it.
//
// A handler hands a task to the Tracker and returns its response right away. The task keeps
// the request's context values but not its cancellation, so a client disconnect or a route
// timeout does not abort it. The host calls Drain before exiting so scheduled work settles.
package background

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Scheduler is the capability handlers depend on.
type Scheduler interface {
	Go(ctx context.Context, name string, fn func(context.Context))
}

// Tracker schedules background tasks and waits for them on Drain.
type Tracker struct {
	wg       conc.WaitGroup
	inFlight atomic.Int64
	log      zerolog.Logger
}

// NewTracker returns a tracker that logs task panics to log.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{log: log}
}

// Go runs fn on its own goroutine with a context detached from ctx's cancellation.
// A panicking task is logged and does not take the process down.
func (t *Tracker) Go(ctx context.Context, name string, fn func(context.Context)) {
	taskCtx := context.WithoutCancel(ctx)
	t.inFlight.Add(1)
	t.wg.Go(func() {
		defer t.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				t.log.Error().Str("task", name).Interface("panic", r).Msg("background task panicked")
			}
		}()
		fn(taskCtx)
	})
}

// InFlight reports how many tasks have not finished yet.
func (t *Tracker) InFlight() int64 {
	return t.inFlight.Load()
}

// Drain blocks until every scheduled task has returned or ctx is done.
// It returns ctx.Err() when it gave up waiting.
func (t *Tracker) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.log.Warn().Int64("in_flight", t.InFlight()).Msg("background drain interrupted")
		return ctx.Err()
	}
}
