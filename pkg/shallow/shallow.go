// Package shallow implements shallow routes: views such as a photo modal
// that get their own history entry and URL without a full navigation.
//
// Loading a shallow route runs its loader and pushes a history entry whose
// state carries the loaded data. Going back pops the entry and the route's
// store returns to nil. When the loader has nothing to show, Load falls back
// to a regular navigation so the target page renders on its own.
//
//	photo := shallow.New("photo", history, history, history,
//		func(ctx context.Context, id string) (Photo, bool, error) {
//			return photos.Get(ctx, id)
//		})
//
//	photo.Load(ctx, mustParse("/photos/42"), "42")
//	entry := photo.Current() // &Entry{Data: ..., Input: "42"}
package shallow

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/store"
)

// StatePrefix prefixes the history state key of every shallow route.
const StatePrefix = "shallow_"

// Entry is what a shallow route stores in history state.
type Entry[In, D any] struct {
	Data  D  `json:"data"`
	Input In `json:"input"`
}

// Loader fetches the data for input. ok=false means there is nothing to
// show shallowly and the caller should navigate for real.
type Loader[In, D any] func(ctx context.Context, input In) (data D, ok bool, err error)

// Option configures a Route.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	navOpts location.NavigateOptions
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNavigateOptions sets the options of the fallback navigation.
func WithNavigateOptions(opts ...location.NavigateOption) Option {
	return func(c *config) {
		c.navOpts = c.navOpts.Apply(opts...)
	}
}

// Route is a named shallow route. It is a store.Readable of the entry in
// the current history state, or nil when the current entry is not this
// route's.
type Route[In, D any] struct {
	name   string
	loc    store.Readable[location.Location]
	nav    location.Navigator
	pusher location.Pusher
	loader Loader[In, D]
	view   store.Readable[*Entry[In, D]]
	cfg    config
}

// New creates the route name.
func New[In, D any](name string, loc store.Readable[location.Location], nav location.Navigator, pusher location.Pusher, loader Loader[In, D], opts ...Option) *Route[In, D] {
	cfg := config{logger: slog.Default().With("component", "shallow", "route", name)}
	for _, opt := range opts {
		opt(&cfg)
	}
	key := StatePrefix + name
	return &Route[In, D]{
		name:   name,
		loc:    loc,
		nav:    nav,
		pusher: pusher,
		loader: loader,
		view: store.Derive(loc, func(l location.Location) *Entry[In, D] {
			return entryFrom[In, D](l.State, key)
		}),
		cfg: cfg,
	}
}

// Name returns the route name.
func (r *Route[In, D]) Name() string { return r.name }

// Key returns the history state key.
func (r *Route[In, D]) Key() string { return StatePrefix + r.name }

// Store returns the route as a read-only store.
func (r *Route[In, D]) Store() store.Readable[*Entry[In, D]] { return r.view }

// Subscribe implements store.Readable.
func (r *Route[In, D]) Subscribe(fn func(*Entry[In, D])) func() {
	return r.view.Subscribe(fn)
}

// Current returns the entry of the current history state.
func (r *Route[In, D]) Current() *Entry[In, D] {
	return entryFrom[In, D](r.loc.Current().State, r.Key())
}

// Load runs the loader for input. With data, it pushes a history entry for
// target carrying the data; without, it navigates to target. Loader errors
// are returned and nothing is pushed.
func (r *Route[In, D]) Load(ctx context.Context, target *url.URL, input In) error {
	data, ok, err := r.loader(ctx, input)
	if err != nil {
		return err
	}
	if !ok {
		r.cfg.logger.Debug("no shallow data, navigating", "target", target.String())
		return r.nav.Navigate(ctx, target, r.cfg.navOpts)
	}
	return r.pusher.PushState(target, map[string]any{
		r.Key(): &Entry[In, D]{Data: data, Input: input},
	})
}

// entryFrom reads key from state. Entries pushed in-process are stored as
// *Entry; entries that went through a JSON transport come back as generic
// maps and are decoded again.
func entryFrom[In, D any](state map[string]any, key string) *Entry[In, D] {
	raw, ok := state[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case *Entry[In, D]:
		return v
	case Entry[In, D]:
		return &v
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var e Entry[In, D]
	if err := json.Unmarshal(data, &e); err != nil {
		return nil
	}
	return &e
}
