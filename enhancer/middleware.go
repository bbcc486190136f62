package enhancer

import (
	"fmt"

	"github.com/comalice/storex"
)

// DispatchFunc is the signature of Store.Dispatch.
type DispatchFunc func(action any) (any, error)

// Middleware wraps a DispatchFunc with cross-cutting logic. It must call next
// to continue the chain unless it short-circuits with an error.
type Middleware func(next DispatchFunc) DispatchFunc

// Chain composes middleware into one. The first middleware is the outermost:
//
//	Chain(logging, recover)(dispatch) == logging(recover(dispatch))
func Chain(mws ...Middleware) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			h = mws[i](h)
		}
		return h
	}
}

// WrapDispatch returns an enhancer that routes every Dispatch through mws.
// The internal INIT action is dispatched by the base factory before the
// chain is installed and therefore never passes through it.
func WrapDispatch[S any](mws ...Middleware) storex.Enhancer[S] {
	mw := Chain(mws...)
	return func(next storex.Factory[S]) storex.Factory[S] {
		return func(reducer storex.Reducer[S], opts ...storex.Option) (storex.Store[S], error) {
			inner, err := next(reducer, opts...)
			if err != nil {
				return nil, err
			}
			return &wrappedStore[S]{
				Store:    inner,
				dispatch: mw(inner.Dispatch),
			}, nil
		}
	}
}

// wrappedStore overrides Dispatch and rebuilds the observable on top of
// itself so observers go through the wrapped Subscribe.
type wrappedStore[S any] struct {
	storex.Store[S]
	dispatch DispatchFunc
}

func (w *wrappedStore[S]) Dispatch(action any) (any, error) {
	return w.dispatch(action)
}

func (w *wrappedStore[S]) Observable() storex.Observable[S] {
	return storex.NewObservable[S](w)
}

// actionLabel renders an action type for logs, spans and metric labels.
func actionLabel(action any) string {
	switch {
	case storex.IsInit(action):
		return "@@storex/INIT"
	case storex.IsReplace(action):
		return "@@storex/REPLACE"
	}
	t := storex.TypeOf(action)
	if t == nil {
		return "unknown"
	}
	if s, ok := t.(string); ok {
		return s
	}
	return fmt.Sprint(t)
}
