// Package lazy turns push-based stores into pull-style values that are only
// active while something consumes them.
//
// A Bridge wraps either a store.Readable or a start/stop notifier. The
// underlying source is activated when the first consumer acquires the
// bridge and torn down when the last one lets go. Letting go is deferred to
// the next microtask, so a consumer that releases and immediately
// re-acquires within the same task (the usual shape of a reactive
// re-evaluation) causes no teardown and no second activation.
//
// Consumption is explicit. Reading through an open Scope acquires the bridge
// for the lifetime of the scope; reading without one is a plain read of the
// last cached value and never activates anything.
//
//	loc := lazy.FromNotifier(loop, location.Location{}, client.Watch)
//
//	scope := lazy.NewScope()
//	current := loc.Get(scope) // connects
//	scope.Close()             // disconnects on the next microtask
package lazy

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/schedule"
	"github.com/vango-dev/urlstore/pkg/store"
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	name     string
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// WithName labels the bridge in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithRecorder records activations on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(c *config) {
		c.recorder = rec
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Bridge is a reference-counted, lazily activated view of a source.
type Bridge[T any] struct {
	sched schedule.Scheduler
	start store.StartFunc[T]
	cache *store.Store[T]
	cfg   config

	mu   sync.Mutex
	refs int
	stop func()
}

// FromReadable bridges src. Until the bridge is first acquired its cached
// value is the zero value of T.
func FromReadable[T any](sched schedule.Scheduler, src store.Readable[T], opts ...Option) *Bridge[T] {
	var zero T
	return newBridge(sched, zero, func(set func(T), _ func(func(T) T)) func() {
		return src.Subscribe(set)
	}, opts)
}

// FromNotifier bridges a start/stop notifier. start runs on activation and
// the function it returns runs on teardown.
func FromNotifier[T any](sched schedule.Scheduler, initial T, start store.StartFunc[T], opts ...Option) *Bridge[T] {
	return newBridge(sched, initial, start, opts)
}

func newBridge[T any](sched schedule.Scheduler, initial T, start store.StartFunc[T], opts []Option) *Bridge[T] {
	cfg := config{
		name:   "default",
		logger: slog.Default().With("component", "lazy"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge[T]{
		sched: sched,
		start: start,
		cache: store.New(initial),
		cfg:   cfg,
	}
}

// Acquire adds a consumer, activating the source on the first one.
func (b *Bridge[T]) Acquire() {
	b.mu.Lock()
	b.refs++
	activate := b.refs == 1 && b.stop == nil
	if activate {
		// Placeholder so a nested Acquire does not activate twice.
		b.stop = func() {}
	}
	b.mu.Unlock()

	if !activate {
		return
	}

	stop := b.start(b.cache.Set, b.cache.Update)
	if stop == nil {
		stop = func() {}
	}

	b.mu.Lock()
	if b.refs == 0 {
		// Every consumer left while the source was starting.
		b.mu.Unlock()
		stop()
		return
	}
	b.stop = stop
	b.mu.Unlock()

	b.cfg.recorder.BridgeActivated(b.cfg.name)
	b.cfg.logger.Debug("bridge activated", "bridge", b.cfg.name)
}

// Release removes a consumer. The decrement runs on the next microtask and
// tears the source down if no consumer is left by then.
func (b *Bridge[T]) Release() {
	b.sched.Defer(b.decrement)
}

func (b *Bridge[T]) decrement() {
	b.mu.Lock()
	if b.refs == 0 {
		b.mu.Unlock()
		b.cfg.logger.Warn("bridge released more often than acquired", "bridge", b.cfg.name)
		return
	}
	b.refs--
	if b.refs > 0 {
		b.mu.Unlock()
		return
	}
	stop := b.stop
	b.stop = nil
	b.mu.Unlock()

	if stop != nil {
		stop()
		b.cfg.recorder.BridgeStopped(b.cfg.name)
		b.cfg.logger.Debug("bridge stopped", "bridge", b.cfg.name)
	}
}

// Get returns the value. Inside an open scope the bridge is acquired for the
// scope's lifetime; with a nil or closed scope Get is the same as Peek.
func (b *Bridge[T]) Get(scope *Scope) T {
	if scope != nil {
		scope.hold(b, b.Acquire, b.Release)
	}
	return b.Peek()
}

// Peek returns the last cached value without activating anything.
func (b *Bridge[T]) Peek() T {
	return b.cache.Current()
}

// Current implements store.Readable. It is the same as Peek.
func (b *Bridge[T]) Current() T {
	return b.Peek()
}

// Subscribe acquires the bridge for as long as the subscription lives and
// replays the current value.
func (b *Bridge[T]) Subscribe(fn func(T)) func() {
	b.Acquire()
	unsubscribe := b.cache.Subscribe(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			b.Release()
		})
	}
}

// Refs returns the number of consumers, including releases that are still
// waiting for their microtask.
func (b *Bridge[T]) Refs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Active reports whether the source is currently activated.
func (b *Bridge[T]) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop != nil
}
