package timeshape

import (
	"time"

	"github.com/vango-dev/urlstore/pkg/schedule"
	"github.com/vango-dev/urlstore/pkg/store"
)

// debouncedWritable delays writes; reads go straight to src.
type debouncedWritable[T any] struct {
	src   store.Writable[T]
	sched schedule.Scheduler
	delay time.Duration
	cfg   config
	sh    shaper[T]
}

// DebounceWritable returns a store whose Set only reaches src once no other
// Set has happened for delay. Each Set cancels the pending write and
// schedules its own value. Subscribe and Current read src directly.
func DebounceWritable[T any](sched schedule.Scheduler, delay time.Duration, src store.Writable[T], opts ...Option) store.Writable[T] {
	return &debouncedWritable[T]{
		src:   src,
		sched: sched,
		delay: delay,
		cfg:   newConfig(opts),
	}
}

func (d *debouncedWritable[T]) Subscribe(fn func(T)) func() { return d.src.Subscribe(fn) }
func (d *debouncedWritable[T]) Current() T                  { return d.src.Current() }

func (d *debouncedWritable[T]) Set(value T) {
	d.sh.mu.Lock()
	if d.sh.timer != nil {
		d.sh.timer.Stop()
	}
	var timer schedule.Timer
	timer = d.sched.AfterFunc(d.delay, func() {
		d.sh.mu.Lock()
		if d.sh.timer != timer {
			d.sh.mu.Unlock()
			return
		}
		d.sh.timer = nil
		d.sh.mu.Unlock()

		d.cfg.recorder.TimerEmission(kindDebounce, d.cfg.name)
		d.src.Set(value)
	})
	d.sh.timer = timer
	d.sh.mu.Unlock()

	d.cfg.recorder.TimerScheduled(kindDebounce, d.cfg.name)
}

// Update schedules fn applied to src's current value.
func (d *debouncedWritable[T]) Update(fn func(T) T) {
	d.Set(fn(d.src.Current()))
}

// throttledWritable limits writes; reads go straight to src.
type throttledWritable[T any] struct {
	src   store.Writable[T]
	sched schedule.Scheduler
	delay time.Duration
	cfg   config
	sh    shaper[T]
}

// ThrottleWritable returns a store whose Set writes through immediately when
// idle and starts a cooldown of delay. Sets during the cooldown replace a
// single remembered value that is written once the cooldown ends. A Set after
// that starts a fresh cycle. Subscribe and Current read src directly.
func ThrottleWritable[T any](sched schedule.Scheduler, delay time.Duration, src store.Writable[T], opts ...Option) store.Writable[T] {
	return &throttledWritable[T]{
		src:   src,
		sched: sched,
		delay: delay,
		cfg:   newConfig(opts),
	}
}

func (w *throttledWritable[T]) Subscribe(fn func(T)) func() { return w.src.Subscribe(fn) }
func (w *throttledWritable[T]) Current() T                  { return w.src.Current() }

func (w *throttledWritable[T]) Set(value T) {
	w.sh.mu.Lock()
	if w.sh.timer != nil {
		w.sh.pending, w.sh.hasPending = value, true
		w.sh.mu.Unlock()
		return
	}
	w.sh.timer = w.sched.AfterFunc(w.delay, w.flush)
	w.sh.mu.Unlock()

	w.cfg.recorder.TimerScheduled(kindThrottle, w.cfg.name)
	w.cfg.recorder.TimerEmission(kindThrottle, w.cfg.name)
	w.src.Set(value)
}

func (w *throttledWritable[T]) flush() {
	w.sh.mu.Lock()
	w.sh.timer = nil
	value, ok := w.sh.pending, w.sh.hasPending
	var zero T
	w.sh.pending, w.sh.hasPending = zero, false
	w.sh.mu.Unlock()

	if ok {
		w.cfg.recorder.TimerEmission(kindThrottle, w.cfg.name)
		w.src.Set(value)
	}
}

// Update applies fn to src's current value and sets the result.
func (w *throttledWritable[T]) Update(fn func(T) T) {
	w.Set(fn(w.src.Current()))
}
