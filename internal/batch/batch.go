// Package batch runs index addressed tasks on a bounded worker pool and
// keeps the first failure.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"iobot/internal/files"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/contextkey"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// Task is one unit of work identified by its index in [0, total).
type Task func(ctx context.Context, index int) error

// Observer is told about progress after every handled task, skipped ones
// included. It is called from worker goroutines concurrently.
type Observer interface {
	Progress(done, total int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(done, total int)

func (f ObserverFunc) Progress(done, total int) { f(done, total) }

// DefaultWorkers leaves one CPU free but never drops below two workers.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 2)
}

// TaskError is the first failure recorded in a batch.
type TaskError struct {
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// WorkerPanic is re-raised by Execute after the pool drains when a task
// panicked.
type WorkerPanic struct {
	Index int
	Value any
	Stack []byte
}

func (p *WorkerPanic) Error() string {
	return fmt.Sprintf("task %d panicked: %v\n%s", p.Index, p.Value, p.Stack)
}

// Executor runs batches. The zero value is not usable; call New.
type Executor struct {
	name     string
	workers  int
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the pool size. Values below one select DefaultWorkers.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithObserver installs a progress observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// New creates an executor. name shows up in logs and errors.
func New(name string, opts ...Option) *Executor {
	e := &Executor{name: name, workers: DefaultWorkers()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the pool size.
func (e *Executor) Workers() int {
	return e.workers
}

// errorSlot holds at most one TaskError; later ones are dropped.
type errorSlot struct {
	mu  sync.Mutex
	err *TaskError
}

func (s *errorSlot) set(index int, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = &TaskError{Index: index, Err: err}
	return true
}

func (s *errorSlot) get() *TaskError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Execute runs task for every index in [0, total). Once a task fails the
// remaining tasks are skipped; tasks already running are left to finish and
// their results are discarded. Execute returns after every worker exits.
//
// Cancelling ctx skips tasks that have not started yet and records the
// cancellation as a failure if none was recorded before. Such a batch
// reports appErr.Canceled instead of appErr.BatchFailed.
//
// A panicking task does not stop the other workers. After the pool drains
// Execute panics with a *WorkerPanic.
func (e *Executor) Execute(ctx context.Context, total int, task Task) error {
	if total <= 0 {
		return nil
	}
	ctx = contextkey.WithBatch(ctx, e.name)
	workers := min(e.workers, total)
	start := time.Now()
	logger.Info(ctx, "batch started", zap.Int("tasks", total), zap.Int("workers", workers))

	indexes := make(chan int, total)
	for i := 0; i < total; i++ {
		indexes <- i
	}
	close(indexes)

	var (
		slot      errorSlot
		done      atomic.Int64
		panicOnce sync.Once
		panicked  *WorkerPanic
		wg        sync.WaitGroup
	)

	handled := func() {
		n := int(done.Add(1))
		logger.Debug(ctx, "batch progress", zap.Int("done", n), zap.Int("total", total))
		if e.observer != nil {
			e.observer.Progress(n, total)
		}
	}

	runOne := func(index int) {
		defer handled()
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				panicOnce.Do(func() {
					panicked = &WorkerPanic{Index: index, Value: r, Stack: stack}
				})
				logger.Error(ctx, "batch task panicked", zap.Int("task_index", index), zap.Any("panic", r))
			}
		}()

		if slot.get() != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			slot.set(index, appErr.Wrap(err, appErr.Canceled))
			return
		}
		taskCtx := contextkey.WithTaskIndex(ctx, index)
		if err := task(taskCtx, index); err != nil {
			if slot.set(index, err) {
				logger.Error(taskCtx, "batch task failed", zap.Error(err))
			}
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for index := range indexes {
				runOne(index)
			}
		}()
	}
	wg.Wait()

	if panicked != nil {
		panic(panicked)
	}
	if taskErr := slot.get(); taskErr != nil {
		code := appErr.BatchFailed
		if appErr.Is(taskErr.Err, appErr.Canceled) {
			code = appErr.Canceled
		}
		return appErr.Wrapf(taskErr, code, "%s batch failed at task %d", e.name, taskErr.Index).
			WithDetail("task_index", taskErr.Index)
	}
	logger.Info(ctx, "batch finished", zap.Int("tasks", total), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Produce computes the content of one indexed file.
type Produce func(ctx context.Context, index int) ([]byte, error)

// Generate runs produce for every index and writes its result to
// dir/<index><ext>. On success the returned descriptor selects exactly those
// files.
func (e *Executor) Generate(ctx context.Context, dir, ext string, total int, produce Produce) (files.Files, error) {
	err := e.Execute(ctx, total, func(ctx context.Context, index int) error {
		data, err := produce(ctx, index)
		if err != nil {
			return err
		}
		return files.WriteFile(filepath.Join(dir, strconv.Itoa(index)+ext), data)
	})
	if err != nil {
		return files.Files{}, err
	}
	return files.Files{Path: dir, Extensions: []string{ext}}, nil
}
