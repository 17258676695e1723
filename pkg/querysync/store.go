// Package querysync keeps a typed value in sync with the query string of the
// current URL.
//
// A Store reads by decoding the live location through a Codec and writes by
// encoding the value back into the query and requesting a navigation. A write
// that would not change the URL requests nothing, which is what keeps a store
// wired back to itself from looping.
//
//	page := querysync.NewParam(history, history, "page", querysync.Int(1))
//	page.Set(2)    // navigates to ?page=2 (replacing the history entry)
//	page.Set(2)    // no-op: the URL already says page=2
//	page.Set(1)    // navigates to the URL without page
//
// Navigation is fire-and-forget. Set does not report whether the navigation
// succeeded; failures are logged, counted and passed to the handler
// installed with WithNavigateErrorHandler.
package querysync

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/metrics"
	"github.com/vango-dev/urlstore/pkg/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vango-dev/urlstore/pkg/querysync"

// DefaultNavigateOptions are applied to every navigation before instance and
// call options.
var DefaultNavigateOptions = location.NavigateOptions{
	ReplaceState: true,
	KeepFocus:    true,
	NoScroll:     true,
}

// Option configures a Store.
type Option func(*config)

type config struct {
	name     string
	sort     bool
	navigate []location.NavigateOption
	onError  func(target string, err error)
	ctx      context.Context
	recorder *metrics.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// WithName labels the store in logs, metrics and spans.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithoutSort keeps the order produced by the codec instead of sorting keys.
// Logically equal queries may then serialize differently, so the no-op check
// only catches writes whose codec output is byte-identical.
func WithoutSort() Option {
	return func(c *config) {
		c.sort = false
	}
}

// WithNavigateOptions adds navigation options applied on top of
// DefaultNavigateOptions for every write of this store.
func WithNavigateOptions(opts ...location.NavigateOption) Option {
	return func(c *config) {
		c.navigate = append(c.navigate, opts...)
	}
}

// WithNavigateErrorHandler receives navigation failures. It is called on
// the goroutine that called Set.
func WithNavigateErrorHandler(fn func(target string, err error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithContext sets the context passed to the navigator.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithRecorder records navigations on rec.
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

// WithTracerProvider sets the tracer provider used for write spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// Store is a store.Writable whose value lives in the URL query.
type Store[T any] struct {
	loc   store.Readable[location.Location]
	nav   location.Navigator
	codec Codec[T]
	view  store.Readable[T]
	cfg   config
}

// New creates a store reading from loc and writing through nav.
func New[T any](loc store.Readable[location.Location], nav location.Navigator, codec Codec[T], opts ...Option) *Store[T] {
	cfg := config{
		name:   "default",
		sort:   true,
		ctx:    context.Background(),
		logger: slog.Default().With("component", "querysync"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store[T]{
		loc:   loc,
		nav:   nav,
		codec: codec,
		view: store.Derive(loc, func(l location.Location) T {
			return codec.Decode(queryOf(l))
		}),
		cfg: cfg,
	}
}

// NewParam is New with a single-key codec.
func NewParam[T any](loc store.Readable[location.Location], nav location.Navigator, key string, t Transform[T], opts ...Option) *Store[T] {
	opts = append([]Option{WithName(key)}, opts...)
	return New(loc, nav, Param(key, t), opts...)
}

func queryOf(l location.Location) Values {
	if l.URL == nil {
		return nil
	}
	return ParseValues(l.URL.RawQuery)
}

// Subscribe implements store.Readable.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	return s.view.Subscribe(fn)
}

// Current decodes the live location.
func (s *Store[T]) Current() T {
	return s.codec.Decode(queryOf(s.loc.Current()))
}

// Set writes value with the store's navigation options.
func (s *Store[T]) Set(value T) {
	s.SetWith(value)
}

// Update writes fn applied to the live decoded value.
func (s *Store[T]) Update(fn func(T) T) {
	s.UpdateWith(fn)
}

// UpdateWith is Update with per-call navigation options.
func (s *Store[T]) UpdateWith(fn func(T) T, opts ...location.NavigateOption) {
	s.SetWith(fn(s.Current()), opts...)
}

// SetWith writes value, applying opts after the store's own options.
func (s *Store[T]) SetWith(value T, opts ...location.NavigateOption) {
	ctx, span := s.cfg.tracer.Start(s.cfg.ctx, "querysync.Set",
		trace.WithAttributes(attribute.String("urlstore.store", s.cfg.name)),
	)
	defer span.End()

	target, changed := s.Target(value)
	if !changed {
		span.SetAttributes(attribute.Bool("urlstore.skipped", true))
		s.cfg.recorder.Navigation(s.cfg.name, metrics.OutcomeSkipped)
		s.cfg.logger.Debug("query unchanged", "store", s.cfg.name)
		return
	}

	navOpts := DefaultNavigateOptions.Apply(s.cfg.navigate...).Apply(opts...)
	span.SetAttributes(
		attribute.String("url.full", target.String()),
		attribute.Bool("urlstore.replace_state", navOpts.ReplaceState),
	)

	if err := s.nav.Navigate(ctx, target, navOpts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.cfg.recorder.Navigation(s.cfg.name, metrics.OutcomeFailed)
		s.cfg.logger.Warn("navigation failed",
			"store", s.cfg.name,
			"target", target.String(),
			"error", err,
		)
		if s.cfg.onError != nil {
			s.cfg.onError(target.String(), err)
		}
		return
	}
	s.cfg.recorder.Navigation(s.cfg.name, metrics.OutcomeRequested)
}

// Target returns the URL a write of value would navigate to, and whether it
// differs from the current URL.
func (s *Store[T]) Target(value T) (*url.URL, bool) {
	current := s.loc.Current()
	before := current.String()

	next := location.CloneURL(current.URL)
	params := s.codec.Encode(value, queryOf(current).Clone())
	if s.cfg.sort {
		params.Sort()
	}
	next.RawQuery = params.Encode()
	next.ForceQuery = false

	return next, next.String() != before
}
