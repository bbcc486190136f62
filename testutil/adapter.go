package testutil

import (
	"context"
	"time"

	"github.com/comalice/storex"
	"github.com/comalice/storex/serial"
)

// StoreAdapter provides a common interface for a store used directly and the
// same store driven through a serial.Runner.
// This allows running the same test suite against both.
type StoreAdapter[S any] interface {
	Start(ctx context.Context) error
	Stop() error
	Dispatch(action any) error
	State() (S, error)
	// StateInListener reads the state from inside a listener, which runs on
	// the goroutine that owns the store.
	StateInListener() (S, error)
	Subscribe(listener storex.Listener) (storex.Unsubscribe, error)
	WaitForStability(timeout time.Duration) error
}

// DirectAdapter calls the store on the caller's goroutine.
type DirectAdapter[S any] struct {
	st storex.Store[S]
}

// NewDirectAdapter creates a new adapter calling st directly.
func NewDirectAdapter[S any](st storex.Store[S]) *DirectAdapter[S] {
	return &DirectAdapter[S]{st: st}
}

func (a *DirectAdapter[S]) Start(ctx context.Context) error {
	return nil
}

func (a *DirectAdapter[S]) Stop() error {
	return nil
}

func (a *DirectAdapter[S]) Dispatch(action any) error {
	_, err := a.st.Dispatch(action)
	return err
}

func (a *DirectAdapter[S]) State() (S, error) {
	return a.st.GetState()
}

func (a *DirectAdapter[S]) StateInListener() (S, error) {
	return a.st.GetState()
}

func (a *DirectAdapter[S]) Subscribe(listener storex.Listener) (storex.Unsubscribe, error) {
	return a.st.Subscribe(listener)
}

func (a *DirectAdapter[S]) WaitForStability(timeout time.Duration) error {
	// Direct dispatch is synchronous.
	return nil
}

// SerialAdapter routes every call through a serial.Runner. Dispatch uses the
// fire-and-forget Send so WaitForStability is meaningful.
type SerialAdapter[S any] struct {
	st storex.Store[S]
	r  *serial.Runner[S]
}

// NewSerialAdapter creates a new adapter running st on its own goroutine.
func NewSerialAdapter[S any](st storex.Store[S], queueSize int) *SerialAdapter[S] {
	return &SerialAdapter[S]{
		st: st,
		r:  serial.New(st, serial.Config{QueueSize: queueSize}),
	}
}

// Runner exposes the underlying runner.
func (a *SerialAdapter[S]) Runner() *serial.Runner[S] {
	return a.r
}

func (a *SerialAdapter[S]) Start(ctx context.Context) error {
	return a.r.Start(ctx)
}

func (a *SerialAdapter[S]) Stop() error {
	return a.r.Stop()
}

func (a *SerialAdapter[S]) Dispatch(action any) error {
	return a.r.Send(action)
}

func (a *SerialAdapter[S]) State() (S, error) {
	return a.r.GetState(context.Background())
}

func (a *SerialAdapter[S]) StateInListener() (S, error) {
	return a.st.GetState()
}

func (a *SerialAdapter[S]) Subscribe(listener storex.Listener) (storex.Unsubscribe, error) {
	return a.r.Subscribe(context.Background(), listener)
}

func (a *SerialAdapter[S]) WaitForStability(timeout time.Duration) error {
	// A no-op runs after everything queued before it.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.r.Do(ctx, func(storex.Store[S]) error { return nil })
}
