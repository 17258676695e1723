// Package metrics collects Prometheus metrics for stores, bridges and hosts.
//
// A Recorder is optional everywhere it is accepted: every method is safe to
// call on a nil *Recorder, so components record unconditionally.
//
//	rec := metrics.New(metrics.WithNamespace("myapp"))
//	q := querysync.New(loc, nav, codec, querysync.WithRecorder(rec))
//
//	http.Handle("/metrics", promhttp.Handler())
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "urlstore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "urlstore",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Recorder holds the collectors. Create one per registry.
type Recorder struct {
	timerEmissions    *prometheus.CounterVec
	timersScheduled   *prometheus.CounterVec
	bridgeActivations *prometheus.CounterVec
	bridgeStops       *prometheus.CounterVec
	bridgesActive     *prometheus.GaugeVec
	navigations       *prometheus.CounterVec
	hostConnections   prometheus.Gauge
	hostMessages      *prometheus.CounterVec
}

// New registers the collectors and returns a Recorder.
//
// Metrics collected:
//   - urlstore_timer_emissions_total: values emitted or written by time shapers
//   - urlstore_timers_scheduled_total: timers started by time shapers
//   - urlstore_bridge_activations_total: lazy bridge activations
//   - urlstore_bridge_stops_total: lazy bridge teardowns
//   - urlstore_bridges_active: bridges currently active
//   - urlstore_navigations_total: query store writes by outcome
//   - urlstore_host_connections: open remote host connections
//   - urlstore_host_messages_total: remote host messages by type and direction
func New(opts ...Option) *Recorder {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Recorder{
		timerEmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "timer_emissions_total",
			Help:        "Values emitted or written by debounce and throttle shapers",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "name"}),

		timersScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "timers_scheduled_total",
			Help:        "Timers started by debounce and throttle shapers",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "name"}),

		bridgeActivations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_activations_total",
			Help:        "Lazy bridge source activations",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		bridgeStops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_stops_total",
			Help:        "Lazy bridge source teardowns",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		bridgesActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridges_active",
			Help:        "Lazy bridges whose source is currently active",
			ConstLabels: config.ConstLabels,
		}, []string{"name"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Query store writes by outcome (requested, skipped, failed)",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "outcome"}),

		hostConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "host_connections",
			Help:        "Open remote host websocket connections",
			ConstLabels: config.ConstLabels,
		}),

		hostMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "host_messages_total",
			Help:        "Remote host messages by type and direction",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "direction"}),
	}
}

// Navigation outcomes.
const (
	OutcomeRequested = "requested"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Host message directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// TimerScheduled records a shaper starting a timer.
func (r *Recorder) TimerScheduled(kind, name string) {
	if r != nil {
		r.timersScheduled.WithLabelValues(kind, name).Inc()
	}
}

// TimerEmission records a shaper emitting or writing a value.
func (r *Recorder) TimerEmission(kind, name string) {
	if r != nil {
		r.timerEmissions.WithLabelValues(kind, name).Inc()
	}
}

// BridgeActivated records a lazy bridge activating its source.
func (r *Recorder) BridgeActivated(name string) {
	if r != nil {
		r.bridgeActivations.WithLabelValues(name).Inc()
		r.bridgesActive.WithLabelValues(name).Inc()
	}
}

// BridgeStopped records a lazy bridge tearing its source down.
func (r *Recorder) BridgeStopped(name string) {
	if r != nil {
		r.bridgeStops.WithLabelValues(name).Inc()
		r.bridgesActive.WithLabelValues(name).Dec()
	}
}

// Navigation records the outcome of a query store write.
func (r *Recorder) Navigation(store, outcome string) {
	if r != nil {
		r.navigations.WithLabelValues(store, outcome).Inc()
	}
}

// HostConnected records a remote host connection opening.
func (r *Recorder) HostConnected() {
	if r != nil {
		r.hostConnections.Inc()
	}
}

// HostDisconnected records a remote host connection closing.
func (r *Recorder) HostDisconnected() {
	if r != nil {
		r.hostConnections.Dec()
	}
}

// HostMessage records a remote host message. direction is DirectionIn or DirectionOut.
func (r *Recorder) HostMessage(msgType, direction string) {
	if r != nil {
		r.hostMessages.WithLabelValues(msgType, direction).Inc()
	}
}
