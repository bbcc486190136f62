// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"

	"github.com/comalice/storex"
	"github.com/comalice/storex/builder"
)

// Payload is the state used by the dispatch benchmarks.
type Payload struct {
	Count int
	Last  string
}

// CountingReducer increments Count for every non-lifecycle action.
func CountingReducer(state Payload, action any) (Payload, error) {
	if storex.IsLifecycle(action) {
		return state, nil
	}
	state.Count++
	return state, nil
}

// GenCaseReducer builds a reducer with n cases "a0".."a{n-1}", each recording
// its type in Last.
func GenCaseReducer(n int) (storex.Reducer[Payload], error) {
	if n < 1 {
		n = 1
	}
	b := builder.New(Payload{})
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("a%d", i)
		b.Handle(name, func(s Payload, _ any) Payload {
			s.Count++
			s.Last = name
			return s
		})
	}
	return b.Build()
}

// Subscribe registers n no-op listeners on st.
func Subscribe[S any](st storex.Store[S], n int) ([]storex.Unsubscribe, error) {
	unsubs := make([]storex.Unsubscribe, 0, n)
	for i := 0; i < n; i++ {
		u, err := st.Subscribe(func() {})
		if err != nil {
			return nil, err
		}
		unsubs = append(unsubs, u)
	}
	return unsubs, nil
}
