package storex

// Enhancer wraps a store factory to add capabilities such as logging,
// tracing or inspection. It receives the next factory and returns a factory
// with the same signature.
type Enhancer[S any] func(next Factory[S]) Factory[S]

// Compose combines enhancers right to left: Compose(f, g)(factory) is
// f(g(factory)), so f sees the store built by g. Nil enhancers are skipped
// and no enhancers yields the identity.
func Compose[S any](enhancers ...Enhancer[S]) Enhancer[S] {
	return func(next Factory[S]) Factory[S] {
		factory := next
		for i := len(enhancers) - 1; i >= 0; i-- {
			if enhancers[i] == nil {
				continue
			}
			factory = enhancers[i](factory)
		}
		return factory
	}
}
