// Package serial runs a storex store on a single goroutine so it can be
// shared by concurrent callers.
//
// The store itself holds no lock: it is built for one thread of control.
// A Runner owns that thread. Every operation submitted to it is queued and
// executed in submission order on the runner goroutine, so reducers and
// listeners never run concurrently.
//
// # Example Usage
//
//	st, _ := storex.New(reducer)
//	r := serial.New(st, serial.Config{QueueSize: 256})
//	if err := r.Start(ctx); err != nil {
//		return err
//	}
//	defer r.Stop()
//
//	r.Dispatch(ctx, storex.Action{Type: "INC"})
//	state, _ := r.GetState(ctx)
//
// # Ordering Guarantees
//
// Operations are sequenced when enqueued:
//  1. Operations from one goroutine run in the order they were submitted
//  2. Send is fire-and-forget and fails fast with ErrQueueFull instead of blocking
//  3. Dispatch, GetState, Subscribe and Do block until the operation ran
//     or ctx is done
//
// # Listeners
//
// Listeners registered through the runner are called on the runner
// goroutine. They must use the store directly for nested operations;
// calling back into the runner from a listener waits on itself.
package serial
