package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artemshloyda/imgshrink/internal/codec"
)

func makeTasks(n int) []codec.Task {
	tasks := make([]codec.Task, n)
	for i := range tasks {
		tasks[i] = codec.Task{InputPath: fmt.Sprintf("in/%d.jpg", i), OutputPath: fmt.Sprintf("out/%d.jpg", i), TargetSizeKB: 10}
	}
	return tasks
}

func TestPool_ProcessesAllTasks(t *testing.T) {
	var calls int64
	pool := New(3, 0, func(ctx context.Context, task codec.Task) codec.Result {
		atomic.AddInt64(&calls, 1)
		return codec.Result{Task: task, Status: codec.StatusTargetMet}
	})

	seen := make(map[string]bool)
	for res := range pool.Start(context.Background(), makeTasks(25)) {
		seen[res.Task.InputPath] = true
	}

	if len(seen) != 25 {
		t.Errorf("got %d distinct results, want 25", len(seen))
	}
	if calls != 25 {
		t.Errorf("process called %d times, want 25", calls)
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	var running, peak int64
	pool := New(2, 0, func(ctx context.Context, task codec.Task) codec.Result {
		n := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		return codec.Result{Task: task}
	})

	for range pool.Start(context.Background(), makeTasks(10)) {
	}

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestPool_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started int64

	pool := New(2, 0, func(ctx context.Context, task codec.Task) codec.Result {
		if atomic.AddInt64(&started, 1) == 1 {
			cancel()
		}
		return codec.Result{Task: task, Status: codec.StatusCancelled, Err: ctx.Err()}
	})

	results := pool.Start(ctx, makeTasks(100))

	done := make(chan struct{})
	go func() {
		for range results {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	if n := atomic.LoadInt64(&started); n >= 100 {
		t.Errorf("started %d tasks after cancel, expected early stop", n)
	}
}

func TestNew_DefaultWorkers(t *testing.T) {
	pool := New(0, 0, nil)
	if pool.Workers() != DefaultWorkers() {
		t.Errorf("Workers() = %d, want %d", pool.Workers(), DefaultWorkers())
	}
	if DefaultWorkers() < 1 {
		t.Errorf("DefaultWorkers() = %d, want >= 1", DefaultWorkers())
	}
}

func TestStats_Record(t *testing.T) {
	var s Stats
	s.Record(codec.Result{Status: codec.StatusTargetMet, InputSize: 1000, OutputSize: 400})
	s.Record(codec.Result{Status: codec.StatusBestEffort, InputSize: 500, OutputSize: 300, Cached: true})
	s.Record(codec.Result{Status: codec.StatusFailed, Err: errors.New("boom"), InputSize: 50})
	s.Record(codec.Result{Status: codec.StatusCancelled})

	got := s.Snapshot()
	if got.Processed != 3 {
		t.Errorf("Processed = %d, want 3", got.Processed)
	}
	if got.TargetMet != 1 || got.BestEffort != 1 || got.Failed != 1 || got.Cached != 1 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.InputBytes != 1500 || got.OutputBytes != 700 {
		t.Errorf("bytes = %d/%d, want 1500/700", got.InputBytes, got.OutputBytes)
	}
	if got.SavedBytes() != 800 {
		t.Errorf("SavedBytes = %d, want 800", got.SavedBytes())
	}
}

func TestStats_SavedPercent(t *testing.T) {
	s := Stats{InputBytes: 200, OutputBytes: 50}
	if got := s.SavedPercent(); got != 75 {
		t.Errorf("SavedPercent = %v, want 75", got)
	}
	if got := (&Stats{}).SavedPercent(); got != 0 {
		t.Errorf("SavedPercent on empty = %v, want 0", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{-2048, "-2.0 KB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemoryLimiter(t *testing.T) {
	disabled := NewMemoryLimiter(0)
	if disabled.IsEnabled() {
		t.Error("limiter with 0 MB must be disabled")
	}
	release, err := disabled.Acquire(context.Background(), 1<<40)
	if err != nil {
		t.Fatal(err)
	}
	release()

	ml := NewMemoryLimiter(1 << 20)
	release, err = ml.Acquire(context.Background(), 1024)
	if err != nil {
		t.Fatal(err)
	}
	if ml.usage() != EstimateUsage(1024) {
		t.Errorf("usage() = %d, want %d", ml.usage(), EstimateUsage(1024))
	}
	release()
	if ml.usage() != 0 {
		t.Errorf("usage() after release = %d, want 0", ml.usage())
	}
}

func TestMemoryLimiter_CancelWhileWaiting(t *testing.T) {
	ml := NewMemoryLimiter(1)
	release, err := ml.Acquire(context.Background(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := ml.Acquire(ctx, 1<<20); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire err = %v, want DeadlineExceeded", err)
	}
}

func TestMemoryLimiter_ReleaseWakesWaiter(t *testing.T) {
	ml := NewMemoryLimiter(1)
	release, err := ml.Acquire(context.Background(), 1<<20)
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := ml.Acquire(context.Background(), 1<<20)
		if err != nil {
			t.Error(err)
			return
		}
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire must wait while the limit is taken")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	release() // повторный вызов ничего не делает

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by release")
	}
	if ml.usage() != 0 {
		t.Errorf("usage() = %d, want 0", ml.usage())
	}
}
