package storex

import "fmt"

// Observer receives state values from an Observable.
type Observer[S any] interface {
	Next(state S)
}

// ObserverFunc adapts a function to an Observer. A nil ObserverFunc exposes
// no next callback and is never called.
type ObserverFunc[S any] func(state S)

// Next calls f(state).
func (f ObserverFunc[S]) Next(state S) {
	if f != nil {
		f(state)
	}
}

// Interop is the capability marker for values that can be consumed as a
// stream of states. Reactive libraries accept an Interop instead of a
// concrete store type; both Store and Observable satisfy it.
type Interop[S any] interface {
	Observable() Observable[S]
}

// Observable is a minimal observable of state changes.
type Observable[S any] interface {
	Interop[S]

	// Subscribe delivers the current state to observer immediately and after
	// every dispatch, until the returned subscription is cancelled.
	Subscribe(observer Observer[S]) (*Subscription, error)
}

// Subscription cancels an observer registration.
type Subscription struct {
	unsubscribe Unsubscribe
}

// Unsubscribe stops delivery. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() error {
	if s == nil || s.unsubscribe == nil {
		return nil
	}
	return s.unsubscribe()
}

// FromInterop returns the observable exposed by src.
func FromInterop[S any](src Interop[S]) (Observable[S], error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source must be a non-nil value", ErrTypeMismatch)
	}
	return src.Observable(), nil
}

type observable[S any] struct {
	store Store[S]
}

// NewObservable builds the observable adapter from the public Subscribe and
// GetState operations of st, so it works for enhanced stores as well.
func NewObservable[S any](st Store[S]) Observable[S] {
	return &observable[S]{store: st}
}

func (o *observable[S]) Subscribe(observer Observer[S]) (*Subscription, error) {
	if observer == nil {
		return nil, fmt.Errorf("%w: observer must be a non-nil value", ErrTypeMismatch)
	}

	observeState := func() error {
		if fn, ok := observer.(ObserverFunc[S]); ok && fn == nil {
			return nil
		}
		state, err := o.store.GetState()
		if err != nil {
			return err
		}
		observer.Next(state)
		return nil
	}

	if err := observeState(); err != nil {
		return nil, err
	}
	unsubscribe, err := o.store.Subscribe(func() {
		// Listeners run with the reentrancy flag released, so GetState cannot fail here.
		_ = observeState()
	})
	if err != nil {
		return nil, err
	}
	return &Subscription{unsubscribe: unsubscribe}, nil
}

func (o *observable[S]) Observable() Observable[S] {
	return o
}
