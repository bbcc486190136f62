package storex

import "log/slog"

// Option configures store construction.
type Option interface {
	apply(*options)
}

type options struct {
	logger       *slog.Logger
	preloaded    any
	hasPreloaded bool
	enhancers    []any
	// passthrough holds every option except enhancers; it is handed to the
	// factory returned by an enhancer.
	passthrough []Option
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type enhancerOption struct {
	enhancer any
}

func (e enhancerOption) apply(o *options) {
	o.enhancers = append(o.enhancers, e.enhancer)
}

// WithPreloadedState sets the initial state, for example one hydrated from a
// server response or a previous session. Without it the store starts from
// the zero value of S.
func WithPreloadedState[S any](state S) Option {
	return optionFunc(func(o *options) {
		o.preloaded = state
		o.hasPreloaded = true
	})
}

// WithEnhancer installs a store enhancer. At most one may be given; combine
// several with Compose.
func WithEnhancer[S any](enhancer Enhancer[S]) Option {
	return enhancerOption{enhancer: enhancer}
}

// WithLogger sets the logger used for store lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

func resolveOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&o)
		if _, ok := opt.(enhancerOption); !ok {
			o.passthrough = append(o.passthrough, opt)
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
