// Package executor provides the single serialization context that owns all
// registry, queue and conversion state. Anything arriving from another
// goroutine (compositor callbacks, IPC requests, timers) is posted here.
package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Sync when the loop is no longer running.
var ErrStopped = errors.New("executor stopped")

// Executor accepts work to run on the serialization context.
type Executor interface {
	Post(fn func())
	PostDelayed(fn func(), delay time.Duration)
}

// Loop runs posted functions one at a time on a dedicated goroutine.
type Loop struct {
	tasks  chan func()
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopped chan struct{}
}

var _ Executor = (*Loop)(nil)

// NewLoop creates a loop with a task buffer of the given size.
func NewLoop(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loop{
		tasks:   make(chan func(), queueSize),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is cancelled. Blocks.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(l.stopped)
	}()

	l.logger.Debug("executor started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("executor stopped")
			return
		case fn := <-l.tasks:
			l.runTask(fn)
		}
	}
}

func (l *Loop) runTask(fn func()) {
	// A panicking task must not take the whole context down with it.
	defer func() {
		if err := recover(); err != nil {
			l.logger.Error("executor task panic recovered", "error", err)
		}
	}()
	fn()
}

// Post queues fn. It blocks only while the buffer is full.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopped:
	}
}

// PostDelayed queues fn after delay has elapsed.
func (l *Loop) PostDelayed(fn func(), delay time.Duration) {
	if delay <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(delay, func() { l.Post(fn) })
}

// Sync posts fn and waits for it to finish. It must not be called from a
// task already running on the loop.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.tasks <- func() {
		defer close(done)
		fn()
	}:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
