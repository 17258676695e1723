package lazy

import "sync"

// Scope is a consumption context. Every bridge read through an open scope
// is acquired once and released when the scope closes.
type Scope struct {
	mu     sync.Mutex
	held   map[any]func()
	order  []any
	closed bool
}

// NewScope opens a scope.
func NewScope() *Scope {
	return &Scope{held: make(map[any]func())}
}

// Track runs fn inside a new scope and returns the scope. The caller closes
// it once the values read by fn are no longer needed.
func Track(fn func(*Scope)) *Scope {
	s := NewScope()
	fn(s)
	return s
}

func (s *Scope) hold(key any, acquire, release func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.held[key]; ok {
		s.mu.Unlock()
		return
	}
	s.held[key] = release
	s.order = append(s.order, key)
	s.mu.Unlock()

	acquire()
}

// Len returns the number of bridges held by the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Close releases every bridge the scope acquired. Reads through a closed
// scope no longer acquire. Close is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	held, order := s.held, s.order
	s.held, s.order = nil, nil
	s.mu.Unlock()

	for _, key := range order {
		held[key]()
	}
}
