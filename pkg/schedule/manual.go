package schedule

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock. Time only moves when
// Advance is called, and tasks and microtasks only run from Advance or Flush,
// on the calling goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
	tasks  []func()
	micro  []func()
}

// NewManual returns a virtual clock starting at the Unix epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0).UTC()}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Elapsed returns the virtual time elapsed since the epoch.
func (m *Manual) Elapsed() time.Duration {
	return m.Now().Sub(time.Unix(0, 0).UTC())
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{
		m:        m,
		deadline: m.now.Add(d),
		seq:      m.seq,
		fn:       fn,
	}
	m.timers = append(m.timers, t)
	return t
}

// Defer queues fn as a microtask.
func (m *Manual) Defer(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.micro = append(m.micro, fn)
	m.mu.Unlock()
}

// Post queues fn as a task.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
}

// Flush runs queued microtasks and tasks until both queues are empty.
// Microtasks always run before the next task.
func (m *Manual) Flush() {
	for {
		m.drainMicro()

		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.tasks[0]
		m.tasks[0] = nil
		m.tasks = m.tasks[1:]
		m.mu.Unlock()

		fn()
	}
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls within the window in deadline order. Each timer callback is followed
// by a Flush. Timers scheduled by callbacks fire in the same call when their
// deadline is still inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.advance(d, true)
}

// Step is Advance that leaves timers due exactly at the new time pending.
// Work the caller does at that instant then runs before them; a following
// Advance(0) fires them.
func (m *Manual) Step(d time.Duration) {
	m.advance(d, false)
}

func (m *Manual) advance(d time.Duration, inclusive bool) {
	m.Flush()

	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target, inclusive)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.remove(t)
		t.fired = true
		if t.deadline.After(m.now) {
			m.now = t.deadline
		}
		m.mu.Unlock()

		t.fn()
		m.Flush()
	}
}

func (m *Manual) drainMicro() {
	for {
		m.mu.Lock()
		if len(m.micro) == 0 {
			m.mu.Unlock()
			return
		}
		batch := m.micro
		m.micro = nil
		m.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// nextDue returns the earliest timer due before target, or at target when
// inclusive. Callers hold mu.
func (m *Manual) nextDue(target time.Time, inclusive bool) *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if t.deadline.After(target) || (!inclusive && t.deadline.Equal(target)) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) ||
			(t.deadline.Equal(next.deadline) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// remove drops t from the timer list. Callers hold mu.
func (m *Manual) remove(t *manualTimer) {
	for i, existing := range m.timers {
		if existing == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

type manualTimer struct {
	m        *Manual
	deadline time.Time
	seq      uint64
	fn       func()

	// fired and stopped are guarded by m.mu.
	fired   bool
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.m.remove(t)
	return true
}
