package enhancer

import (
	"log/slog"
	"time"

	"github.com/comalice/storex"
)

// Logging returns an enhancer that logs every dispatch with its action type
// and duration. Failed dispatches are logged at error level.
func Logging[S any](logger *slog.Logger) storex.Enhancer[S] {
	return WrapDispatch[S](LoggingMiddleware(logger))
}

// LoggingMiddleware is the middleware behind Logging.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next DispatchFunc) DispatchFunc {
		return func(action any) (any, error) {
			actionType := actionLabel(action)
			logger.Debug("dispatch started", slog.String("action_type", actionType))

			start := time.Now()
			result, err := next(action)
			elapsed := time.Since(start)

			if err != nil {
				logger.Error("dispatch failed",
					slog.String("action_type", actionType),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
				return result, err
			}
			logger.Info("dispatch completed",
				slog.String("action_type", actionType),
				slog.Duration("elapsed", elapsed),
			)
			return result, nil
		}
	}
}
