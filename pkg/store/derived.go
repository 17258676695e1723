package store

// readonly hides the write side of a Store.
type readonly[T any] struct {
	s *Store[T]
}

func (r readonly[T]) Subscribe(fn func(T)) func() { return r.s.Subscribe(fn) }
func (r readonly[T]) Current() T                  { return r.s.Current() }

// Readonly exposes only the read side of w.
func Readonly[T any](w Readable[T]) Readable[T] {
	if s, ok := w.(*Store[T]); ok {
		return readonly[T]{s: s}
	}
	return readableFunc[T]{subscribe: w.Subscribe, current: w.Current}
}

type readableFunc[T any] struct {
	subscribe func(func(T)) func()
	current   func() T
}

func (r readableFunc[T]) Subscribe(fn func(T)) func() { return r.subscribe(fn) }
func (r readableFunc[T]) Current() T                  { return r.current() }

// NewReadable creates a read-only store whose value is driven by start.
//
// Example:
//
//	ticks := store.NewReadable(0, func(set func(int), _ func(func(int) int)) func() {
//	    // open the external resource
//	    return func() { /* close it */ }
//	})
func NewReadable[T any](initial T, start StartFunc[T], opts ...Option[T]) Readable[T] {
	opts = append(opts, WithStart(start))
	return readonly[T]{s: New(initial, opts...)}
}

// Derive returns a read-only store holding fn applied to src's value. The
// source is subscribed only while the derived store has subscribers.
func Derive[In, Out any](src Readable[In], fn func(In) Out, opts ...Option[Out]) Readable[Out] {
	var zero Out
	start := func(set func(Out), _ func(func(Out) Out)) func() {
		return src.Subscribe(func(v In) {
			set(fn(v))
		})
	}
	return NewReadable(zero, start, opts...)
}

// DeriveWith is Derive for callbacks that set the derived value themselves,
// possibly later. The cleanup returned by fn runs before the next call and
// when the derived store stops.
func DeriveWith[In, Out any](src Readable[In], initial Out, fn func(value In, set func(Out)) (cleanup func()), opts ...Option[Out]) Readable[Out] {
	start := func(set func(Out), _ func(func(Out) Out)) func() {
		var cleanup func()
		unsubscribe := src.Subscribe(func(v In) {
			if cleanup != nil {
				cleanup()
			}
			cleanup = fn(v, set)
		})
		return func() {
			unsubscribe()
			if cleanup != nil {
				cleanup()
				cleanup = nil
			}
		}
	}
	return NewReadable(initial, start, opts...)
}
