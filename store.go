package storex

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/comalice/storex/internal/core"
	"github.com/comalice/storex/internal/primitives"
)

// Store holds a state tree that changes only through dispatched actions.
//
// Implementations returned by enhancers must keep the same contract as the
// base store built by New.
type Store[S any] interface {
	// Dispatch runs the reducer once with the current state and action, then
	// notifies every listener. It returns the action it was given.
	Dispatch(action any) (any, error)

	// Subscribe registers a listener called after every dispatch.
	//
	// Subscriptions are snapshotted when a dispatch starts notifying:
	// subscribing or unsubscribing from inside a listener only affects the
	// next dispatch, nested or not. A listener may not see every state if
	// nested dispatches happen before it runs, but every listener registered
	// before a dispatch started observes the latest state by the time that
	// dispatch returns.
	Subscribe(listener Listener) (Unsubscribe, error)

	// GetState returns the current state.
	GetState() (S, error)

	// ReplaceReducer swaps the reducer and dispatches the internal REPLACE action.
	ReplaceReducer(next Reducer[S]) error

	// Observable exposes the store as an observable stream of states.
	Observable() Observable[S]
}

// Factory builds a store. New is the base factory.
type Factory[S any] func(reducer Reducer[S], opts ...Option) (Store[S], error)

var _ Store[int] = (*store[int])(nil)

type store[S any] struct {
	reducer     Reducer[S]
	state       S
	listeners   *core.Registry
	dispatching bool
	logger      *slog.Logger
}

// New creates a store driven by reducer.
//
// With WithEnhancer the call is delegated entirely to
// enhancer(New[S])(reducer, opts...) minus the enhancer option itself.
// Otherwise the reducer must be non-nil, and the internal INIT action is
// dispatched before New returns so the reducer can populate its initial state.
func New[S any](reducer Reducer[S], opts ...Option) (Store[S], error) {
	o := resolveOptions(opts)

	if len(o.enhancers) > 1 {
		return nil, fmt.Errorf("%w: several store enhancers passed; compose them into a single enhancer with Compose", ErrConfiguration)
	}
	if len(o.enhancers) == 1 {
		enhancer, ok := o.enhancers[0].(Enhancer[S])
		if !ok || enhancer == nil {
			return nil, fmt.Errorf("%w: enhancer must be a function", ErrTypeMismatch)
		}
		factory := enhancer(New[S])
		if factory == nil {
			return nil, fmt.Errorf("%w: enhancer returned no factory", ErrTypeMismatch)
		}
		return factory(reducer, o.passthrough...)
	}

	if reducer == nil {
		return nil, fmt.Errorf("%w: reducer must be a function", ErrTypeMismatch)
	}

	var state S
	if o.hasPreloaded && o.preloaded != nil {
		s, ok := o.preloaded.(S)
		if !ok {
			return nil, fmt.Errorf("%w: preloaded state is %T, want %s", ErrTypeMismatch, o.preloaded, reflect.TypeFor[S]())
		}
		state = s
	}

	s := &store[S]{
		reducer:   reducer,
		state:     state,
		listeners: core.NewRegistry(),
		logger:    o.logger,
	}

	// Every reducer returns its initial state for an unknown action, which
	// populates the initial state tree.
	if _, err := s.Dispatch(Action{Type: primitives.ActionInit}); err != nil {
		return nil, err
	}

	s.logger.Debug("store created",
		slog.String("state_type", reflect.TypeFor[S]().String()),
		slog.Bool("preloaded", o.hasPreloaded),
	)
	return s, nil
}

// NewWithState creates a store starting from state.
func NewWithState[S any](reducer Reducer[S], state S, opts ...Option) (Store[S], error) {
	return New(reducer, append([]Option{WithPreloadedState(state)}, opts...)...)
}

// NewWithEnhancer creates a store through enhancer.
func NewWithEnhancer[S any](reducer Reducer[S], enhancer Enhancer[S], opts ...Option) (Store[S], error) {
	return New(reducer, append([]Option{WithEnhancer(enhancer)}, opts...)...)
}

func (s *store[S]) GetState() (S, error) {
	if s.dispatching {
		var zero S
		return zero, fmt.Errorf("%w: the reducer has already received the state as an argument", ErrInvalidStateAccess)
	}
	return s.state, nil
}

func (s *store[S]) Subscribe(listener Listener) (Unsubscribe, error) {
	if listener == nil {
		return nil, fmt.Errorf("%w: listener must be a function", ErrTypeMismatch)
	}
	if s.dispatching {
		return nil, fmt.Errorf("%w: subscribe from a listener and read the state there instead", ErrInvalidLifecycle)
	}

	subscribed := true
	slot := s.listeners.Add(listener)

	return func() error {
		if !subscribed {
			return nil
		}
		if s.dispatching {
			return fmt.Errorf("%w: cannot unsubscribe", ErrInvalidLifecycle)
		}
		subscribed = false
		s.listeners.Remove(slot)
		return nil
	}, nil
}

func (s *store[S]) Dispatch(action any) (any, error) {
	if !primitives.IsPlainRecord(action) {
		return nil, fmt.Errorf("%w: actions must be plain records, got %T", ErrInvalidAction, action)
	}
	if _, ok := primitives.ActionType(action); !ok {
		return nil, fmt.Errorf("%w: action type must be defined", ErrInvalidAction)
	}
	if s.dispatching {
		return nil, ErrReentrancy
	}

	if err := s.reduce(action); err != nil {
		return nil, err
	}

	listeners := s.listeners.Snapshot()
	for i := 0; i < len(listeners); i++ {
		listeners[i].Call()
	}

	return action, nil
}

// reduce runs the reducer with the reentrancy flag held. The flag is released
// on every exit path, panics included, and the state is only assigned when
// the reducer succeeds.
func (s *store[S]) reduce(action any) error {
	s.dispatching = true
	defer func() {
		s.dispatching = false
	}()

	next, err := s.reducer(s.state, action)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *store[S]) ReplaceReducer(next Reducer[S]) error {
	if next == nil {
		return fmt.Errorf("%w: next reducer must be a function", ErrTypeMismatch)
	}

	s.reducer = next
	s.logger.Debug("reducer replaced")

	_, err := s.Dispatch(Action{Type: primitives.ActionReplace})
	return err
}

func (s *store[S]) Observable() Observable[S] {
	return NewObservable[S](s)
}
