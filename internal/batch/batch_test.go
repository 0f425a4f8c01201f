package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	appErr "iobot/pkg/errors"
)

func TestDefaultWorkers(t *testing.T) {
	if n := DefaultWorkers(); n < 2 {
		t.Fatalf("expected at least 2 workers, got %d", n)
	}
	if n := New("x", WithWorkers(0)).Workers(); n != DefaultWorkers() {
		t.Fatalf("zero should select default, got %d", n)
	}
	if n := New("x", WithWorkers(3)).Workers(); n != 3 {
		t.Fatalf("expected 3 workers, got %d", n)
	}
}

func TestGenerateWritesIndexedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "in")
	const total = 25

	var progress atomic.Int64
	var last atomic.Int64
	exec := New("inputs", WithWorkers(4), WithObserver(ObserverFunc(func(done, n int) {
		progress.Add(1)
		if n != total {
			t.Errorf("unexpected total %d", n)
		}
		if int64(done) > last.Load() {
			last.Store(int64(done))
		}
	})))

	desc, err := exec.Generate(context.Background(), dir, ".in", total, func(ctx context.Context, index int) ([]byte, error) {
		return []byte(fmt.Sprintf("case %d\n", index)), nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if desc.Path != dir || len(desc.Extensions) != 1 || desc.Extensions[0] != ".in" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != total {
		t.Fatalf("expected %d files, got %d", total, len(entries))
	}
	for i := 0; i < total; i++ {
		data, err := os.ReadFile(filepath.Join(dir, strconv.Itoa(i)+".in"))
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(data) != fmt.Sprintf("case %d\n", i) {
			t.Fatalf("file %d: unexpected content %q", i, data)
		}
	}
	if progress.Load() != total || last.Load() != total {
		t.Fatalf("unexpected progress reports: calls=%d last=%d", progress.Load(), last.Load())
	}
}

func TestExecuteSingleFailureReportsIndex(t *testing.T) {
	const failAt = 7
	cause := errors.New("exit status 1")

	err := New("outputs", WithWorkers(3)).Execute(context.Background(), 20, func(ctx context.Context, index int) error {
		if index == failAt {
			return cause
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %v", err)
	}
	if taskErr.Index != failAt {
		t.Fatalf("expected index %d, got %d", failAt, taskErr.Index)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	if appErr.GetCode(err) != appErr.BatchFailed {
		t.Fatalf("expected BatchFailed, got %v", appErr.GetCode(err))
	}
}

func TestExecuteSkipsAfterFirstError(t *testing.T) {
	var ran atomic.Int64
	var handled atomic.Int64

	err := New("seq", WithWorkers(1), WithObserver(ObserverFunc(func(done, total int) {
		handled.Store(int64(done))
	}))).Execute(context.Background(), 10, func(ctx context.Context, index int) error {
		ran.Add(1)
		if index == 2 {
			return errors.New("boom")
		}
		return nil
	})

	var taskErr *TaskError
	if !errors.As(err, &taskErr) || taskErr.Index != 2 {
		t.Fatalf("expected failure at 2, got %v", err)
	}
	if ran.Load() != 3 {
		t.Fatalf("expected 3 task bodies to run, got %d", ran.Load())
	}
	if handled.Load() != 10 {
		t.Fatalf("skipped tasks must still be counted, got %d", handled.Load())
	}
}

func TestExecuteFirstErrorWins(t *testing.T) {
	// Both tasks fail while running concurrently; the one that records
	// first must be reported and the other dropped.
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})

	go func() {
		started.Wait()
		close(release)
	}()

	err := New("race", WithWorkers(2)).Execute(context.Background(), 2, func(ctx context.Context, index int) error {
		started.Done()
		<-release
		return fmt.Errorf("task %d failed", index)
	})

	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %v", err)
	}
	if taskErr.Index != 0 && taskErr.Index != 1 {
		t.Fatalf("unexpected index %d", taskErr.Index)
	}
	if got := fmt.Sprint(taskErr.Err); got != fmt.Sprintf("task %d failed", taskErr.Index) {
		t.Fatalf("cause does not match index: %s", got)
	}
}

func TestExecuteInFlightTasksFinish(t *testing.T) {
	slowStarted := make(chan struct{})
	slowDone := make(chan struct{})
	failed := make(chan struct{})

	err := New("inflight", WithWorkers(2)).Execute(context.Background(), 2, func(ctx context.Context, index int) error {
		if index == 0 {
			<-slowStarted
			close(failed)
			return errors.New("fast failure")
		}
		close(slowStarted)
		<-failed
		close(slowDone)
		return nil
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	select {
	case <-slowDone:
	default:
		t.Fatalf("in-flight task was not allowed to finish")
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int64
	err := New("canceled").Execute(ctx, 5, func(ctx context.Context, index int) error {
		ran.Add(1)
		return nil
	})
	if !appErr.Is(err, appErr.Canceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if ran.Load() != 0 {
		t.Fatalf("no task should run, %d did", ran.Load())
	}
	if appErr.GetCode(err) != appErr.Canceled {
		t.Fatalf("expected Canceled code, got %v", appErr.GetCode(err))
	}
}

func TestExecuteCancelWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var ran, finished atomic.Int64
	go func() {
		<-started
		<-started
		cancel()
		close(release)
	}()

	err := New("cancel-running", WithWorkers(2)).Execute(ctx, 4, func(ctx context.Context, index int) error {
		ran.Add(1)
		started <- struct{}{}
		<-release
		finished.Add(1)
		return nil
	})
	if appErr.GetCode(err) != appErr.Canceled {
		t.Fatalf("expected Canceled, got %v", err)
	}
	if appErr.GetCode(err).ExitStatus() != 130 {
		t.Fatalf("unexpected exit status %d", appErr.GetCode(err).ExitStatus())
	}
	if ran.Load() != 2 || finished.Load() != 2 {
		t.Fatalf("running tasks should finish and the rest be skipped: ran=%d finished=%d", ran.Load(), finished.Load())
	}
}

func TestExecutePanicIsReraisedAfterDrain(t *testing.T) {
	var finished atomic.Int64

	defer func() {
		r := recover()
		wp, ok := r.(*WorkerPanic)
		if !ok {
			t.Fatalf("expected *WorkerPanic, got %v", r)
		}
		if wp.Index != 3 || fmt.Sprint(wp.Value) != "kaboom" {
			t.Fatalf("unexpected panic: %d %v", wp.Index, wp.Value)
		}
		if finished.Load() != 9 {
			t.Fatalf("pool should drain before re-panic, finished=%d", finished.Load())
		}
	}()

	_ = New("panic", WithWorkers(2)).Execute(context.Background(), 10, func(ctx context.Context, index int) error {
		if index == 3 {
			panic("kaboom")
		}
		finished.Add(1)
		return nil
	})
	t.Fatalf("Execute should have panicked")
}

func TestExecuteEmptyBatch(t *testing.T) {
	called := false
	if err := New("empty").Execute(context.Background(), 0, func(ctx context.Context, index int) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if called {
		t.Fatalf("task should not be called")
	}
}

func TestGenerateWriteFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New("write").Generate(context.Background(), filepath.Join(blocker, "in"), ".in", 3, func(ctx context.Context, index int) ([]byte, error) {
		return []byte("x"), nil
	})
	if !appErr.Is(err, appErr.FileWriteFailed) {
		t.Fatalf("expected FileWriteFailed, got %v", err)
	}
}
