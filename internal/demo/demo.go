// Package demo holds the traffic-light store served by storexd.
package demo

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/comalice/storex"
	"github.com/comalice/storex/builder"
	"github.com/comalice/storex/enhancer"
	"github.com/comalice/storex/internal/production"
)

// Light colours cycle red -> green -> yellow -> red on TIMER.
const (
	Red    = "red"
	Green  = "green"
	Yellow = "yellow"
)

var nextLight = map[string]string{
	Red:    Green,
	Green:  Yellow,
	Yellow: Red,
}

// State is the demo state tree.
type State struct {
	Light  string `json:"light" yaml:"light"`
	Cycles int    `json:"cycles" yaml:"cycles"`
	Count  int    `json:"count" yaml:"count"`
	Ticks  uint64 `json:"ticks" yaml:"ticks"`
}

// Initial is the state installed by INIT.
func Initial() State {
	return State{Light: Red}
}

// Reducer builds the demo reducer:
//   - TIMER advances the light, counting a cycle each time it returns to red
//   - INC, DEC and ADD (numeric payload) change the counter
//   - TICK records the latest tick number from a ticker source
//   - RESET restores the initial state
func Reducer() (storex.Reducer[State], error) {
	return builder.New(Initial()).
		Handle("TIMER", func(s State, _ any) State {
			s.Light = nextLight[s.Light]
			if s.Light == Red {
				s.Cycles++
			}
			return s
		}).
		Handle("INC", func(s State, _ any) State {
			s.Count++
			return s
		}).
		Handle("DEC", func(s State, _ any) State {
			s.Count--
			return s
		}).
		On("ADD", func(s State, action any) (State, error) {
			n, err := intPayload(action)
			if err != nil {
				return s, err
			}
			s.Count += n
			return s, nil
		}).
		Handle("TICK", func(s State, action any) State {
			if a, ok := action.(storex.Action); ok {
				if n, ok := a.Payload.(uint64); ok {
					s.Ticks = n
					return s
				}
			}
			s.Ticks++
			return s
		}).
		Handle("RESET", func(State, any) State {
			return Initial()
		}).
		Build()
}

// intPayload accepts the numeric forms produced by Go callers, YAML and JSON.
func intPayload(action any) (int, error) {
	a, ok := action.(storex.Action)
	if !ok {
		return 0, fmt.Errorf("demo: ADD wants a storex.Action, got %T", action)
	}
	switch n := a.Payload.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("demo: ADD payload %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("demo: ADD payload must be a number, got %T", a.Payload)
	}
}

// Options configures NewStore.
type Options struct {
	Logger      *slog.Logger
	HistorySize int
	Namespace   string
	Registry    prometheus.Registerer
}

// Stack is a demo store with its instrumentation.
type Stack struct {
	Store     storex.Store[State]
	Inspector *production.Inspector[State]
	Metrics   *enhancer.Collector
}

// NewStore builds the demo store with the full enhancer stack: logging,
// panic recovery, tracing, metrics and history inspection.
func NewStore(opts Options) (*Stack, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	reducer, err := Reducer()
	if err != nil {
		return nil, fmt.Errorf("build reducer: %w", err)
	}

	metricOpts := []enhancer.MetricsOption{enhancer.WithConstLabels(prometheus.Labels{"store": "demo"})}
	if opts.Namespace != "" {
		metricOpts = append(metricOpts, enhancer.WithNamespace(opts.Namespace))
	}
	if opts.Registry != nil {
		metricOpts = append(metricOpts, enhancer.WithRegistry(opts.Registry))
	}
	collector := enhancer.NewCollector(metricOpts...)
	inspector := production.NewInspector[State](opts.HistorySize)

	st, err := storex.NewWithEnhancer(reducer,
		storex.Compose(
			enhancer.Logging[State](opts.Logger),
			enhancer.Recover[State](opts.Logger),
			enhancer.Tracing[State](),
			enhancer.MetricsWithCollector[State](collector),
			inspector.Enhancer(),
		),
		storex.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	return &Stack{Store: st, Inspector: inspector, Metrics: collector}, nil
}
