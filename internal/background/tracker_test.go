package background

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

func TestGo_DetachedFromCancellation(t *testing.T) {
	tr := NewTracker(zerolog.New(io.Discard))

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	release := make(chan struct{})
	result := make(chan error, 1)
	gotValue := make(chan any, 1)

	tr.Go(parent, "test", func(ctx context.Context) {
		<-release
		gotValue <- ctx.Value(ctxKey{})
		result <- ctx.Err()
	})

	cancel()
	close(release)

	if err := tr.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if err := <-result; err != nil {
		t.Errorf("task context should not be cancelled with its parent, got %v", err)
	}
	if v := <-gotValue; v != "v" {
		t.Errorf("task context should keep parent values, got %v", v)
	}
}

func TestGo_DoesNotBlockCaller(t *testing.T) {
	tr := NewTracker(zerolog.New(io.Discard))
	release := make(chan struct{})

	start := time.Now()
	tr.Go(context.Background(), "slow", func(context.Context) { <-release })
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Go blocked for %s", elapsed)
	}
	if tr.InFlight() != 1 {
		t.Errorf("Expected 1 task in flight, got %d", tr.InFlight())
	}

	close(release)
	if err := tr.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if tr.InFlight() != 0 {
		t.Errorf("Expected 0 tasks in flight after drain, got %d", tr.InFlight())
	}
}

func TestDrain_RespectsDeadline(t *testing.T) {
	tr := NewTracker(zerolog.New(io.Discard))
	release := make(chan struct{})
	defer close(release)

	tr.Go(context.Background(), "stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tr.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestGo_RecoversPanics(t *testing.T) {
	tr := NewTracker(zerolog.New(io.Discard))
	tr.Go(context.Background(), "boom", func(context.Context) { panic("boom") })

	if err := tr.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
}
