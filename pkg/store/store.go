package store

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Readable is a value with a current snapshot and change notifications.
type Readable[T any] interface {
	// Subscribe calls fn with the current value before returning, then once
	// per change. The returned function removes the subscription; calling it
	// more than once is a no-op.
	Subscribe(fn func(T)) (unsubscribe func())

	// Current returns the current value.
	Current() T
}

// Writable is a Readable that can be changed.
type Writable[T any] interface {
	Readable[T]

	// Set replaces the value and notifies subscribers if it changed.
	Set(value T)

	// Update sets the value to fn(current).
	Update(fn func(T) T)
}

// StartFunc is a start/stop notifier. It runs when a store gains its first
// subscriber and may push values through set and update. The returned stop
// function, if any, runs when the last subscriber leaves.
type StartFunc[T any] func(set func(T), update func(func(T) T)) (stop func())

// Option configures a Store.
type Option[T any] func(*Store[T])

// WithEquals sets the equality function used to suppress no-op changes.
// This is useful for custom types where reflect.DeepEqual is too expensive
// or has incorrect semantics.
func WithEquals[T any](fn func(a, b T) bool) Option[T] {
	return func(s *Store[T]) {
		s.equal = fn
	}
}

// WithStart attaches a start/stop notifier.
func WithStart[T any](start StartFunc[T]) Option[T] {
	return func(s *Store[T]) {
		s.start = start
	}
}

type subscription[T any] struct {
	fn     func(T)
	active atomic.Bool
}

type delivery[T any] struct {
	subs  []*subscription[T]
	value T
}

// Store is the Writable implementation used throughout the module.
type Store[T any] struct {
	mu    sync.Mutex
	value T
	subs  []*subscription[T]
	equal func(T, T) bool

	start    StartFunc[T]
	stop     func()
	started  bool
	starting bool

	// queue holds deliveries raised while another round is being delivered.
	queue    []delivery[T]
	draining bool
}

// New creates a store holding initial.
func New[T any](initial T, opts ...Option[T]) *Store[T] {
	s := &Store[T]{value: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn and replays the current value to it.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	sub := &subscription[T]{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	first := s.start != nil && !s.started
	if first {
		s.started = true
		s.starting = true
	}
	s.mu.Unlock()

	if first {
		// Values pushed while start runs are not broadcast; the replay below
		// hands the final one to the new subscriber.
		stop := s.start(s.Set, s.Update)

		s.mu.Lock()
		s.starting = false
		if len(s.subs) > 0 {
			s.stop = stop
			stop = nil
		} else {
			s.started = false
		}
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
	}

	s.mu.Lock()
	value := s.value
	s.mu.Unlock()

	if sub.active.Load() {
		fn(value)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

func (s *Store[T]) unsubscribe(sub *subscription[T]) {
	sub.active.Store(false)

	s.mu.Lock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	var stop func()
	if len(s.subs) == 0 && s.started && !s.starting {
		stop = s.stop
		s.stop = nil
		s.started = false
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Current returns the current value. A notifier-backed store with no
// subscribers is started and stopped around the read so the value is fresh.
func (s *Store[T]) Current() T {
	s.mu.Lock()
	idle := s.start != nil && !s.started
	value := s.value
	s.mu.Unlock()

	if !idle {
		return value
	}
	var got T
	unsubscribe := s.Subscribe(func(v T) { got = v })
	unsubscribe()
	return got
}

// Set replaces the value and notifies subscribers if it changed.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	if s.equals(s.value, value) {
		s.mu.Unlock()
		return
	}
	s.value = value
	if s.starting || len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}

	subs := make([]*subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.queue = append(s.queue, delivery[T]{subs: subs, value: value})
	if s.draining {
		s.mu.Unlock()
		return
	}

	s.draining = true
	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue[0] = delivery[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		for _, sub := range d.subs {
			if sub.active.Load() {
				sub.fn(d.value)
			}
		}

		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// Update sets the value to fn(current). fn runs outside the store lock, so it
// may read other stores, including this one.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	current := s.value
	s.mu.Unlock()
	s.Set(fn(current))
}

// Subscribers returns the number of active subscribers.
func (s *Store[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return Equal(a, b)
}

// Equal reports whether a and b are equal using == for common comparable
// kinds and reflect.DeepEqual for everything else. When T is an interface
// type, values holding different dynamic types are unequal.
func Equal[T any](a, b T) bool {
	switch any(a).(type) {
	case string, bool, int, int64, int32, uint, uint64, float64, float32:
		// a's dynamic type is comparable; differing dynamic types compare false.
		return any(a) == any(b)
	default:
		return reflect.DeepEqual(a, b)
	}
}
