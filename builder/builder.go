// Package builder provides a fluent API for assembling reducers from
// per-action-type cases instead of hand-written switch statements.
//
//	reducer, err := builder.New(0).
//	    Handle("INC", func(n int, _ any) int { return n + 1 }).
//	    Handle("DEC", func(n int, _ any) int { return n - 1 }).
//	    Build()
package builder

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/comalice/storex"
)

var (
	ErrEmptyType     = errors.New("builder: action type must be defined")
	ErrDuplicateCase = errors.New("builder: duplicate case for action type")
	ErrNilHandler    = errors.New("builder: handler must be a function")
)

// Builder collects cases keyed by action type. Registration errors are
// reported together by Build.
type Builder[S any] struct {
	initial  S
	cases    map[any]storex.Reducer[S]
	fallback storex.Reducer[S]
	errs     []error
}

// New creates a builder whose reducer starts from initial.
func New[S any](initial S) *Builder[S] {
	return &Builder[S]{
		initial: initial,
		cases:   make(map[any]storex.Reducer[S]),
	}
}

// On registers handler for actions whose type equals actionType.
func (b *Builder[S]) On(actionType any, handler storex.Reducer[S]) *Builder[S] {
	switch {
	case actionType == nil || reflect.ValueOf(actionType).IsZero():
		b.errs = append(b.errs, ErrEmptyType)
		return b
	case !reflect.TypeOf(actionType).Comparable():
		b.errs = append(b.errs, fmt.Errorf("%w: %T is not comparable", ErrEmptyType, actionType))
		return b
	case handler == nil:
		b.errs = append(b.errs, fmt.Errorf("%w: case %v", ErrNilHandler, actionType))
		return b
	}
	if _, exists := b.cases[actionType]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w %v", ErrDuplicateCase, actionType))
		return b
	}
	b.cases[actionType] = handler
	return b
}

// Handle registers an infallible case.
func (b *Builder[S]) Handle(actionType any, fn func(state S, action any) S) *Builder[S] {
	return b.On(actionType, storex.Pure(fn))
}

// Default sets the handler for action types without a case. Without it,
// unknown actions return the state unchanged.
func (b *Builder[S]) Default(handler storex.Reducer[S]) *Builder[S] {
	if handler == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: default case", ErrNilHandler))
		return b
	}
	b.fallback = handler
	return b
}

// Build returns the assembled reducer.
//
// When the store delivers a lifecycle action (INIT or REPLACE) and the state
// is still the zero value of S, the reducer substitutes the initial state
// before running any case.
func (b *Builder[S]) Build() (storex.Reducer[S], error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	initial := b.initial
	cases := maps.Clone(b.cases)
	fallback := b.fallback

	return func(state S, action any) (S, error) {
		if storex.IsLifecycle(action) && isZero(state) {
			state = initial
		}
		t := storex.TypeOf(action)
		if t != nil && reflect.TypeOf(t).Comparable() {
			if handler, ok := cases[t]; ok {
				return handler(state, action)
			}
		}
		if fallback != nil {
			return fallback(state, action)
		}
		return state, nil
	}, nil
}

func isZero[S any](state S) bool {
	return reflect.ValueOf(&state).Elem().IsZero()
}
