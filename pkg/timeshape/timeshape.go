// Package timeshape provides debounce and throttle decorators for stores.
//
// The read decorators (Debounce, Throttle) wrap a Readable and shape when its
// changes are passed on. The write decorators (DebounceWritable,
// ThrottleWritable) wrap a Writable and shape when Set reaches the
// underlying store; reads of a write decorator are never delayed.
//
// All decorators pass the value they see first straight through and only
// apply timing to later changes. Timers run on the supplied
// schedule.Scheduler and each decorator owns at most one live timer.
//
// Example:
//
//	// Filter results at most every 250ms while the user types.
//	visible := timeshape.Throttle(loop, 250*time.Millisecond, query)
//
//	// Only write the search box back to the URL once typing settles.
//	search := timeshape.DebounceWritable(loop, 300*time.Millisecond, param)
package timeshape

import (
	"sync"
	"time"

	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/schedule"
	"github.com/vango-dev/urlstore/pkg/store"
)

const (
	kindDebounce = "debounce"
	kindThrottle = "throttle"
)

// Option configures a decorator.
type Option func(*config)

type config struct {
	name     string
	recorder *metrics.Recorder
}

// WithName labels the decorator's metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithRecorder records timer activity on rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(c *config) {
		c.recorder = rec
	}
}

func newConfig(opts []Option) config {
	c := config{name: "default"}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// shaper is the timing state owned by one decorator instance.
type shaper[T any] struct {
	mu         sync.Mutex
	timer      schedule.Timer
	emitted    bool
	pending    T
	hasPending bool
}

// reset cancels the live timer and forgets everything seen so far.
func (s *shaper[T]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var zero T
	s.emitted = false
	s.pending = zero
	s.hasPending = false
}

// shaped builds a read decorator. observe is called for every source value
// and decides when to call set.
func shaped[T any](src store.Readable[T], sh *shaper[T], observe func(v T, set func(T))) store.Readable[T] {
	var zero T
	return store.NewReadable(zero, func(set func(T), _ func(func(T) T)) func() {
		unsubscribe := src.Subscribe(func(v T) {
			observe(v, set)
		})
		return func() {
			unsubscribe()
			sh.reset()
		}
	})
}

// Debounce returns a store that passes src's first value through and then
// emits only once src has been quiet for delay, with the last value seen.
// Every change restarts the delay.
func Debounce[T any](sched schedule.Scheduler, delay time.Duration, src store.Readable[T], opts ...Option) store.Readable[T] {
	cfg := newConfig(opts)
	sh := &shaper[T]{}

	return shaped(src, sh, func(v T, set func(T)) {
		sh.mu.Lock()
		if !sh.emitted {
			sh.emitted = true
			sh.mu.Unlock()
			set(v)
			return
		}
		if sh.timer != nil {
			sh.timer.Stop()
		}
		var timer schedule.Timer
		timer = sched.AfterFunc(delay, func() {
			sh.mu.Lock()
			if sh.timer != timer {
				sh.mu.Unlock()
				return
			}
			sh.timer = nil
			sh.mu.Unlock()

			cfg.recorder.TimerEmission(kindDebounce, cfg.name)
			set(v)
		})
		sh.timer = timer
		sh.mu.Unlock()

		cfg.recorder.TimerScheduled(kindDebounce, cfg.name)
	})
}

// Throttle returns a store that passes src's first value through, then
// emits a change immediately when idle and starts a cooldown of delay.
// Changes during the cooldown are remembered and the latest one is emitted
// once when the cooldown ends.
func Throttle[T any](sched schedule.Scheduler, delay time.Duration, src store.Readable[T], opts ...Option) store.Readable[T] {
	cfg := newConfig(opts)
	sh := &shaper[T]{}

	var cooldown func(set func(T)) schedule.Timer
	cooldown = func(set func(T)) schedule.Timer {
		var timer schedule.Timer
		timer = sched.AfterFunc(delay, func() {
			sh.mu.Lock()
			if sh.timer != timer {
				sh.mu.Unlock()
				return
			}
			sh.timer = nil
			value, ok := sh.pending, sh.hasPending
			var zero T
			sh.pending, sh.hasPending = zero, false
			sh.mu.Unlock()

			if ok {
				cfg.recorder.TimerEmission(kindThrottle, cfg.name)
				set(value)
			}
		})
		cfg.recorder.TimerScheduled(kindThrottle, cfg.name)
		return timer
	}

	return shaped(src, sh, func(v T, set func(T)) {
		sh.mu.Lock()
		if !sh.emitted {
			sh.emitted = true
			sh.mu.Unlock()
			set(v)
			return
		}
		if sh.timer != nil {
			sh.pending, sh.hasPending = v, true
			sh.mu.Unlock()
			return
		}
		// Start the cooldown before emitting so a change made by a
		// subscriber lands inside it.
		sh.timer = cooldown(set)
		sh.mu.Unlock()

		cfg.recorder.TimerEmission(kindThrottle, cfg.name)
		set(v)
	})
}
