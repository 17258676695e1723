// Package location defines the host environment the URL-synchronized stores
// talk to: the current location, the navigation request, and the shallow
// history push.
//
// History is an in-memory host implementing all three. It is what the CLI
// and tests run against; pkg/host exposes one over a websocket for remote
// clients.
package location

import (
	"context"
	"errors"
	"maps"
	"net/url"
)

// Location is the current URL plus the opaque state attached to its history
// entry.
type Location struct {
	URL   *url.URL
	State map[string]any
}

// String returns the URL, or "" for a zero Location.
func (l Location) String() string {
	if l.URL == nil {
		return ""
	}
	return l.URL.String()
}

// Clone returns a copy that shares nothing mutable with l.
func (l Location) Clone() Location {
	return Location{URL: CloneURL(l.URL), State: maps.Clone(l.State)}
}

// CloneURL copies u. A nil URL clones to an empty one.
func CloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}

// NavigateOptions mirror the options of a client-side navigation.
type NavigateOptions struct {
	// ReplaceState replaces the current history entry instead of pushing one.
	ReplaceState bool `json:"replaceState,omitempty"`

	// NoScroll keeps the scroll position.
	NoScroll bool `json:"noScroll,omitempty"`

	// KeepFocus keeps the focused element focused.
	KeepFocus bool `json:"keepFocus,omitempty"`

	// InvalidateAll re-runs every data loader for the page.
	InvalidateAll bool `json:"invalidateAll,omitempty"`
}

// NavigateOption adjusts NavigateOptions.
type NavigateOption func(*NavigateOptions)

// ReplaceState sets NavigateOptions.ReplaceState.
func ReplaceState(v bool) NavigateOption {
	return func(o *NavigateOptions) { o.ReplaceState = v }
}

// NoScroll sets NavigateOptions.NoScroll.
func NoScroll(v bool) NavigateOption {
	return func(o *NavigateOptions) { o.NoScroll = v }
}

// KeepFocus sets NavigateOptions.KeepFocus.
func KeepFocus(v bool) NavigateOption {
	return func(o *NavigateOptions) { o.KeepFocus = v }
}

// InvalidateAll sets NavigateOptions.InvalidateAll.
func InvalidateAll(v bool) NavigateOption {
	return func(o *NavigateOptions) { o.InvalidateAll = v }
}

// Apply returns o with opts applied in order.
func (o NavigateOptions) Apply(opts ...NavigateOption) NavigateOptions {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Navigator requests client-side navigations.
//
// Navigate must not wait for the navigation to finish rendering; it returns
// once the request has been accepted or rejected.
type Navigator interface {
	Navigate(ctx context.Context, target *url.URL, opts NavigateOptions) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target *url.URL, opts NavigateOptions) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, target *url.URL, opts NavigateOptions) error {
	return f(ctx, target, opts)
}

// Pusher pushes a history entry carrying state without a full navigation.
type Pusher interface {
	PushState(target *url.URL, state map[string]any) error
}

var (
	// ErrBlocked is returned when a blocker rejects a navigation.
	ErrBlocked = errors.New("location: navigation blocked")

	// ErrNoHistory is returned by Back when there is no previous entry.
	ErrNoHistory = errors.New("location: no previous history entry")

	// ErrCrossOrigin is returned for targets on another origin.
	ErrCrossOrigin = errors.New("location: cross-origin navigation")
)
