package testutil

import (
	"sync"

	"github.com/comalice/storex"
)

// CounterState is a small state tree shared by store tests and benchmarks.
type CounterState struct {
	Count int      `json:"count" yaml:"count"`
	Log   []string `json:"log,omitempty" yaml:"log,omitempty"`
}

// CounterReducer handles INC, DEC, ADD (payload int) and LOG (payload string).
// Any other action leaves the state untouched.
func CounterReducer(state CounterState, action any) (CounterState, error) {
	a, _ := action.(storex.Action)
	switch storex.TypeOf(action) {
	case "INC":
		state.Count++
	case "DEC":
		state.Count--
	case "ADD":
		if n, ok := a.Payload.(int); ok {
			state.Count += n
		}
	case "LOG":
		if s, ok := a.Payload.(string); ok {
			// Copy so earlier states keep their own slice.
			state.Log = append(append([]string(nil), state.Log...), s)
		}
	}
	return state, nil
}

// CallRecorder records listener invocations. It is safe for concurrent use.
type CallRecorder[S any] struct {
	mu     sync.Mutex
	states []S
	errs   []error
}

// Listener returns a listener that reads the state via get on every call.
func (r *CallRecorder[S]) Listener(get func() (S, error)) storex.Listener {
	return func() {
		s, err := get()
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.errs = append(r.errs, err)
			return
		}
		r.states = append(r.states, s)
	}
}

// Observer returns an observer recording every state it receives.
func (r *CallRecorder[S]) Observer() storex.Observer[S] {
	return storex.ObserverFunc[S](func(s S) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, s)
	})
}

// States returns a copy of the recorded states.
func (r *CallRecorder[S]) States() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]S(nil), r.states...)
}

// Calls returns the number of recorded invocations, failed reads included.
func (r *CallRecorder[S]) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states) + len(r.errs)
}

// Errors returns the errors returned by state reads.
func (r *CallRecorder[S]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
