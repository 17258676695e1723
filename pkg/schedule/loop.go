package schedule

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the logger used to report task panics.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop is a single-goroutine event loop. Tasks run one at a time in the order
// they were posted, and every task is followed by a full drain of the
// microtask queue.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	micro []func()

	// busy is true while the loop goroutine is executing a task or draining
	// microtasks. Deferred work queued while busy is picked up by that drain.
	busy bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	logger *slog.Logger
}

// NewLoop creates an event loop. Call Run to start processing.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "schedule"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.busy = true
			l.mu.Unlock()

			l.exec(fn)
			l.drain()
			continue
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		}
	}
}

// Close stops Run. Queued tasks that have not started are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// Post queues fn as a task. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Defer queues fn as a microtask.
func (l *Loop) Defer(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.micro = append(l.micro, fn)
	idle := !l.busy
	l.mu.Unlock()

	if idle {
		// Nothing is running that would drain the queue, so wake the loop
		// with an empty task.
		l.Post(func() {})
	}
}

// AfterFunc runs fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.state.CompareAndSwap(timerPending, timerFired) {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.micro) == 0 {
			l.busy = false
			l.mu.Unlock()
			return
		}
		batch := l.micro
		l.micro = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

const (
	timerPending int32 = iota
	timerFired
	timerStopped
)

type loopTimer struct {
	timer *time.Timer
	state atomic.Int32
}

func (t *loopTimer) Stop() bool {
	if !t.state.CompareAndSwap(timerPending, timerStopped) {
		return false
	}
	t.timer.Stop()
	return true
}
