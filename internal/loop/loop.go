// Package loop provides the single-threaded executor every client component runs on.
//
// Components never lock their own state. Background goroutines (socket reads, decodes,
// microphone reads, timers, frame ticks) hand results back with Post, and the loop runs
// the posted closures one at a time in submission order.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("loop stopped")

// Executor schedules work onto the component thread.
type Executor interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// Go runs fn off the loop. fn must only touch component state through Post.
	Go(fn func())
	// AfterFunc posts fn once after d. The returned func cancels it and reports whether it was pending.
	AfterFunc(d time.Duration, fn func()) (cancel func() bool)
	// Every posts fn each interval until the returned func is called.
	Every(interval time.Duration, fn func()) (stop func())
}

// Loop is the goroutine-backed Executor.
type Loop struct {
	logger *zap.Logger
	tasks  chan func()
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a loop with the given queue depth.
func New(logger *zap.Logger, depth int) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		logger: logger,
		tasks:  make(chan func(), depth),
		done:   make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Post implements Executor. Tasks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Go implements Executor.
func (l *Loop) Go(fn func()) {
	go fn()
}

// AfterFunc implements Executor.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	timer := time.AfterFunc(d, func() { l.Post(fn) })
	return timer.Stop
}

// Every implements Executor.
func (l *Loop) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	quit := make(chan struct{})
	var once sync.Once
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(fn)
			}
		}
	}()
	return func() { once.Do(func() { close(quit) }) }
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
