package enhancer

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/comalice/storex"
)

// MetricsConfig configures the Prometheus metrics enhancer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "storex").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics, typically the store name.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// ActionTypes, when set, is the allow-list of action types recorded under
	// their own label; every other type is recorded as OtherActionType.
	ActionTypes []string

	// MaxActionTypes caps the number of distinct type labels when no
	// allow-list is set. Types seen after the cap are recorded as
	// OtherActionType. Default: 64
	MaxActionTypes int
}

// OtherActionType is the type label for actions outside the allow-list or
// beyond MaxActionTypes.
const OtherActionType = "other"

// MetricsOption configures the metrics enhancer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithActionTypes restricts the type label to the given action types.
func WithActionTypes(types ...string) MetricsOption {
	return func(c *MetricsConfig) {
		c.ActionTypes = types
	}
}

// WithMaxActionTypes sets the cap on distinct type labels.
func WithMaxActionTypes(n int) MetricsOption {
	return func(c *MetricsConfig) {
		c.MaxActionTypes = n
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:      "storex",
		Buckets:        prometheus.DefBuckets,
		Registry:       prometheus.DefaultRegisterer,
		MaxActionTypes: 64,
	}
}

// typeLabels bounds the cardinality of the type label.
type typeLabels struct {
	mu      sync.Mutex
	allowed map[string]struct{}
	fixed   bool
	max     int
}

func newTypeLabels(cfg MetricsConfig) *typeLabels {
	l := &typeLabels{allowed: make(map[string]struct{}), max: cfg.MaxActionTypes}
	if len(cfg.ActionTypes) > 0 {
		l.fixed = true
		for _, t := range cfg.ActionTypes {
			l.allowed[t] = struct{}{}
		}
	}
	return l
}

func (l *typeLabels) label(actionType string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.allowed[actionType]; ok {
		return actionType
	}
	if l.fixed || (l.max > 0 && len(l.allowed) >= l.max) {
		return OtherActionType
	}
	l.allowed[actionType] = struct{}{}
	return actionType
}

// Collector holds the store metrics. It is exported so callers can read
// values in tests or register additional views.
type Collector struct {
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Listeners        prometheus.Gauge
	Replacements     prometheus.Counter

	types *typeLabels
}

// NewCollector creates and registers the store metrics. Collectors already
// registered with the same descriptors are reused.
func NewCollector(opts ...MetricsOption) *Collector {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Collector{
		types: newTypeLabels(cfg),

		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "dispatch_total",
			Help:        "Total number of dispatched actions by type and status",
			ConstLabels: cfg.ConstLabels,
		}, []string{"type", "status"}),

		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Duration of reducer execution plus listener notification in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"type"}),

		Listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "listeners",
			Help:        "Number of listeners currently subscribed",
			ConstLabels: cfg.ConstLabels,
		}),

		Replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "reducer_replacements_total",
			Help:        "Total number of successful reducer replacements",
			ConstLabels: cfg.ConstLabels,
		}),
	}

	if cfg.Registry != nil {
		c.DispatchTotal = register(cfg.Registry, c.DispatchTotal)
		c.DispatchDuration = register(cfg.Registry, c.DispatchDuration)
		c.Listeners = register(cfg.Registry, c.Listeners)
		c.Replacements = register(cfg.Registry, c.Replacements)
	}
	return c
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Middleware records dispatch counts and durations. The type label is
// bounded by the allow-list or MaxActionTypes.
func (c *Collector) Middleware() Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(action any) (any, error) {
			actionType := c.types.label(actionLabel(action))
			start := time.Now()
			result, err := next(action)

			status := "ok"
			if err != nil {
				status = "error"
			}
			c.DispatchTotal.WithLabelValues(actionType, status).Inc()
			c.DispatchDuration.WithLabelValues(actionType).Observe(time.Since(start).Seconds())
			return result, err
		}
	}
}

// Metrics returns an enhancer recording Prometheus metrics for the store:
//   - storex_dispatch_total{type,status}
//   - storex_dispatch_duration_seconds{type}
//   - storex_listeners
//   - storex_reducer_replacements_total
func Metrics[S any](opts ...MetricsOption) storex.Enhancer[S] {
	return MetricsWithCollector[S](NewCollector(opts...))
}

// MetricsWithCollector is Metrics with a caller-owned collector.
func MetricsWithCollector[S any](c *Collector) storex.Enhancer[S] {
	mw := c.Middleware()
	return func(next storex.Factory[S]) storex.Factory[S] {
		return func(reducer storex.Reducer[S], opts ...storex.Option) (storex.Store[S], error) {
			inner, err := next(reducer, opts...)
			if err != nil {
				return nil, err
			}
			return &meteredStore[S]{
				Store:     inner,
				collector: c,
				dispatch:  mw(inner.Dispatch),
			}, nil
		}
	}
}

type meteredStore[S any] struct {
	storex.Store[S]
	collector *Collector
	dispatch  DispatchFunc
}

func (m *meteredStore[S]) Dispatch(action any) (any, error) {
	return m.dispatch(action)
}

func (m *meteredStore[S]) Subscribe(listener storex.Listener) (storex.Unsubscribe, error) {
	unsubscribe, err := m.Store.Subscribe(listener)
	if err != nil {
		return nil, err
	}
	m.collector.Listeners.Inc()

	active := true
	return func() error {
		if !active {
			return nil
		}
		if err := unsubscribe(); err != nil {
			return err
		}
		active = false
		m.collector.Listeners.Dec()
		return nil
	}, nil
}

func (m *meteredStore[S]) ReplaceReducer(next storex.Reducer[S]) error {
	if err := m.Store.ReplaceReducer(next); err != nil {
		return err
	}
	m.collector.Replacements.Inc()
	return nil
}

func (m *meteredStore[S]) Observable() storex.Observable[S] {
	return storex.NewObservable[S](m)
}
