package storex

import "errors"

var (
	// ErrConfiguration reports an unsupported combination of construction options.
	ErrConfiguration = errors.New("storex: invalid configuration")

	// ErrTypeMismatch reports a missing or wrongly typed reducer, enhancer,
	// listener, observer or preloaded state.
	ErrTypeMismatch = errors.New("storex: type mismatch")

	// ErrInvalidAction reports an action that is not a plain record or has no type.
	ErrInvalidAction = errors.New("storex: invalid action")

	// ErrReentrancy reports a dispatch issued while the reducer is executing.
	ErrReentrancy = errors.New("storex: reducers may not dispatch actions")

	// ErrInvalidStateAccess reports GetState called while the reducer is executing.
	ErrInvalidStateAccess = errors.New("storex: state may not be read while the reducer is executing")

	// ErrInvalidLifecycle reports Subscribe or Unsubscribe called while the reducer is executing.
	ErrInvalidLifecycle = errors.New("storex: listeners may not change while the reducer is executing")
)
