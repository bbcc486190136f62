// Package storex provides a minimal, predictable state container.
//
// A Store holds one state value of type S. The only way to change it is to
// dispatch an action; the store passes the current state and the action to a
// pure Reducer and replaces the state with the result. Listeners subscribed
// to the store are notified after every dispatch.
//
// # Quick Start
//
//	counter := storex.Pure(func(n int, action any) int {
//	    if storex.TypeOf(action) == "INC" {
//	        return n + 1
//	    }
//	    return n
//	})
//	st, err := storex.New(counter)
//	_, err = st.Dispatch(storex.Action{Type: "INC"})
//	n, _ := st.GetState() // 1
//
// # Lifecycle
//
// Every store receives exactly one internal INIT action at construction, and
// ReplaceReducer dispatches an internal REPLACE action so the new reducer can
// initialise any state it introduces. Both types are reserved and carry a
// random per-process suffix; use IsInit, IsReplace or IsLifecycle to detect
// them.
//
// # Reentrancy
//
// While the reducer runs, Dispatch fails with ErrReentrancy, GetState with
// ErrInvalidStateAccess and Subscribe/Unsubscribe with ErrInvalidLifecycle.
// Listeners run after the reducer returns and may call any of them.
//
// # Enhancers
//
// An Enhancer wraps the store factory to add capabilities (logging, tracing,
// metrics, inspection). Several enhancers are combined with Compose and
// passed as a single WithEnhancer option.
//
// # Concurrency
//
// A Store is not safe for concurrent use. Serialize access externally, for
// example with the serial package.
package storex
