package location

import (
	"context"
	"log/slog"
	"maps"
	"net/url"
	"sync"

	"github.com/vango-dev/urlstore/pkg/store"
)

// Blocker inspects a pending navigation and reports whether to reject it.
type Blocker func(from Location, to *url.URL, opts NavigateOptions) bool

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithBlocker adds a navigation blocker. Blockers run in the order they were
// added; the first one returning true rejects the navigation with ErrBlocked.
func WithBlocker(fn Blocker) HistoryOption {
	return func(h *History) {
		if fn != nil {
			h.blockers = append(h.blockers, fn)
		}
	}
}

// WithHistoryLogger sets the logger.
func WithHistoryLogger(logger *slog.Logger) HistoryOption {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// History is an in-memory browser history. It is the Navigator, the Pusher
// and the current-location observable of a single simulated tab.
//
// Locations handed out by History must be treated as read-only; use Clone
// before modifying one.
type History struct {
	mu       sync.Mutex
	entries  []Location
	index    int
	blockers []Blocker
	logger   *slog.Logger

	current *store.Store[Location]
}

// NewHistory creates a history with a single entry for start.
func NewHistory(start *url.URL, opts ...HistoryOption) *History {
	first := Location{URL: CloneURL(start)}
	h := &History{
		entries: []Location{first},
		logger:  slog.Default().With("component", "history"),
		current: store.New(first, store.WithEquals(sameLocation)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ParseHistory is NewHistory for a raw URL.
func ParseHistory(raw string, opts ...HistoryOption) (*History, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return NewHistory(u, opts...), nil
}

func sameLocation(a, b Location) bool {
	if a.String() != b.String() {
		return false
	}
	return store.Equal(a.State, b.State)
}

// Subscribe implements store.Readable.
func (h *History) Subscribe(fn func(Location)) func() {
	return h.current.Subscribe(fn)
}

// Current returns the active entry.
func (h *History) Current() Location {
	return h.current.Current()
}

// Watch is a start/stop notifier over the active entry, for use with
// lazy.FromNotifier.
func (h *History) Watch(set func(Location), _ func(func(Location) Location)) func() {
	return h.current.Subscribe(set)
}

// Navigate moves to target, resolved against the current URL. A navigation
// clears the entry state. With ReplaceState the active entry is replaced;
// otherwise a new entry is pushed and forward entries are dropped.
//
// The active entry is updated before Navigate returns.
func (h *History) Navigate(ctx context.Context, target *url.URL, opts NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	from := h.entries[h.index]
	resolved, err := resolve(from.URL, target)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	for _, block := range h.blockers {
		if block(from, resolved, opts) {
			h.mu.Unlock()
			h.logger.Debug("navigation blocked", "from", from.String(), "to", resolved.String())
			return ErrBlocked
		}
	}
	next := h.commit(Location{URL: resolved}, opts.ReplaceState)
	h.mu.Unlock()

	h.logger.Debug("navigated",
		"to", resolved.String(),
		"replace", opts.ReplaceState,
		"invalidate_all", opts.InvalidateAll,
	)
	h.current.Set(next)
	return nil
}

// PushState pushes a new entry carrying state without running blockers.
func (h *History) PushState(target *url.URL, state map[string]any) error {
	h.mu.Lock()
	resolved, err := resolve(h.entries[h.index].URL, target)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	next := h.commit(Location{URL: resolved, State: maps.Clone(state)}, false)
	h.mu.Unlock()

	h.current.Set(next)
	return nil
}

// Back moves to the previous entry.
func (h *History) Back() error {
	h.mu.Lock()
	if h.index == 0 {
		h.mu.Unlock()
		return ErrNoHistory
	}
	h.index--
	prev := h.entries[h.index]
	h.mu.Unlock()

	h.current.Set(prev)
	return nil
}

// Entries returns copies of all entries and the index of the active one.
func (h *History) Entries() ([]Location, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Location, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Clone()
	}
	return out, h.index
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// commit must be called with h.mu held.
func (h *History) commit(loc Location, replace bool) Location {
	if replace {
		h.entries[h.index] = loc
		return loc
	}
	h.entries = append(h.entries[:h.index+1], loc)
	h.index++
	return loc
}

func resolve(base, target *url.URL) (*url.URL, error) {
	if target == nil {
		return CloneURL(base), nil
	}
	if base == nil {
		return CloneURL(target), nil
	}
	resolved := base.ResolveReference(target)
	if base.Host != "" && resolved.Host != base.Host {
		return nil, ErrCrossOrigin
	}
	if base.Scheme != "" && resolved.Scheme != base.Scheme {
		return nil, ErrCrossOrigin
	}
	return resolved, nil
}
