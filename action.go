package storex

import "github.com/comalice/storex/internal/primitives"

// Action is the canonical action record. Any method-less struct with a Type
// field, or a map[string]any with a "type" key, may be dispatched as well.
type Action struct {
	Type    any            `json:"type" yaml:"type"`
	Payload any            `json:"payload,omitempty" yaml:"payload,omitempty"`
	Meta    map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Reducer computes the next state from the current state and an action.
// It must be pure: no side effects, no calls back into the store.
type Reducer[S any] func(state S, action any) (S, error)

// Pure adapts an infallible transition function to a Reducer.
func Pure[S any](fn func(state S, action any) S) Reducer[S] {
	if fn == nil {
		return nil
	}
	return func(state S, action any) (S, error) {
		return fn(state, action), nil
	}
}

// Listener is invoked after every dispatch.
type Listener func()

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func() error

// TypeOf returns the discriminator of an action, or nil when it has none.
func TypeOf(action any) any {
	t, _ := primitives.ActionType(action)
	return t
}

// IsInit reports whether action is the store's internal INIT action.
func IsInit(action any) bool {
	return TypeOf(action) == any(primitives.ActionInit)
}

// IsReplace reports whether action is the internal REPLACE action dispatched by ReplaceReducer.
func IsReplace(action any) bool {
	return TypeOf(action) == any(primitives.ActionReplace)
}

// IsLifecycle reports whether action is any of the store's internal actions.
func IsLifecycle(action any) bool {
	return primitives.IsLifecycleType(TypeOf(action))
}
