package collect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// countingRunner は実行回数を記録するCycleRunnerモック。
type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(_ context.Context) error {
	r.calls.Add(1)
	return r.err
}

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// ティッカーを待たず起動直後に1回実行される
	deadline := time.After(time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not run immediately on start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}

	if got := runner.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx, 20*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want at least 3", runner.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_ContinuesAfterCycleFailure(t *testing.T) {
	runner := &countingRunner{err: errors.New("cycle failed")}
	s := NewScheduler(runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx, 20*time.Millisecond)

	// 失敗してもスケジューラは停止せず再試行を続ける
	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want at least 2 despite failures", runner.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
