// Package enhancer provides store enhancers that decorate Dispatch with
// cross-cutting behaviour: structured logging, panic recovery, OpenTelemetry
// tracing and Prometheus metrics.
//
// Each constructor returns a storex.Enhancer. Combine several with
// storex.Compose; the first enhancer is the outermost wrapper:
//
//	st, err := storex.NewWithEnhancer(reducer, storex.Compose(
//	    enhancer.Logging[State](logger),
//	    enhancer.Tracing[State](),
//	    enhancer.Metrics[State](),
//	))
package enhancer
