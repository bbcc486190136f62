package enhancer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/comalice/storex"
)

// ErrPanic wraps a panic raised by a reducer or listener during dispatch.
var ErrPanic = errors.New("enhancer: panic during dispatch")

// Recover returns an enhancer converting panics raised during Dispatch into
// errors. The store's reentrancy flag has already been released by the time
// the panic reaches this middleware.
func Recover[S any](logger *slog.Logger) storex.Enhancer[S] {
	return WrapDispatch[S](RecoverMiddleware(logger))
}

// RecoverMiddleware is the middleware behind Recover.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next DispatchFunc) DispatchFunc {
		return func(action any) (result any, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("dispatch panicked",
						slog.String("action_type", actionLabel(action)),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					result = nil
					retErr = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			return next(action)
		}
	}
}
