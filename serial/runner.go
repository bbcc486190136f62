package serial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/comalice/storex"
)

var (
	// ErrNotRunning is returned for operations submitted before Start or after Stop.
	ErrNotRunning = errors.New("serial: runner not running")

	// ErrQueueFull is returned by Send when the operation queue is at capacity.
	ErrQueueFull = errors.New("serial: queue full")

	// ErrPanic wraps a panic recovered while running an operation.
	ErrPanic = errors.New("serial: operation panicked")
)

// Config configures a Runner.
type Config struct {
	QueueSize int          // Operation queue capacity (default: 1024)
	Logger    *slog.Logger // Default: slog.Default()
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// op is one unit of work queued for the runner goroutine.
type op[S any] struct {
	seq  uint64
	name string
	fn   func(storex.Store[S]) error
	done chan error // nil for Send
}

// Runner serializes access to a store through one goroutine.
type Runner[S any] struct {
	store  storex.Store[S]
	logger *slog.Logger
	queue  chan op[S]

	mu      sync.Mutex
	state   runState
	cancel  context.CancelFunc
	stopped chan struct{}

	seq       atomic.Uint64
	processed atomic.Uint64
}

// New creates a runner for st. The runner does not execute anything until Start.
func New[S any](st storex.Store[S], cfg Config) *Runner[S] {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner[S]{
		store:   st,
		logger:  cfg.Logger,
		queue:   make(chan op[S], cfg.QueueSize),
		stopped: make(chan struct{}),
	}
}

// Start launches the runner goroutine. Calling Start on a running runner is
// a no-op; a stopped runner cannot be restarted. Cancelling ctx stops the
// loop as Stop would.
func (r *Runner[S]) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateRunning:
		return nil
	case stateStopped:
		return fmt.Errorf("%w: runner already stopped", ErrNotRunning)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = stateRunning

	go r.loop(loopCtx)

	r.logger.Debug("serial runner started", slog.Int("queue_size", cap(r.queue)))
	return nil
}

// Stop stops the runner and waits for the loop to exit. Queued operations
// that did not run yet fail with ErrNotRunning. Stop is idempotent.
func (r *Runner[S]) Stop() error {
	r.mu.Lock()
	switch r.state {
	case stateIdle:
		r.state = stateStopped
		close(r.stopped)
		r.mu.Unlock()
		return nil
	case stateStopped:
		r.mu.Unlock()
		<-r.stopped
		return nil
	}
	r.state = stateStopped
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	<-r.stopped

	r.logger.Debug("serial runner stopped", slog.Uint64("processed", r.processed.Load()))
	return nil
}

// Processed returns the number of operations executed so far.
func (r *Runner[S]) Processed() uint64 {
	return r.processed.Load()
}

// Pending returns the number of queued operations not yet executed.
func (r *Runner[S]) Pending() int {
	return len(r.queue)
}

func (r *Runner[S]) loop(ctx context.Context) {
	defer r.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case o := <-r.queue:
			err := r.execute(o)
			r.processed.Add(1)
			if o.done != nil {
				o.done <- err
			} else if err != nil {
				r.logger.Error("queued operation failed",
					slog.String("op", o.name),
					slog.Uint64("seq", o.seq),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// shutdown marks the runner stopped, whether Stop or the parent context
// ended the loop, and fails the operations still queued.
func (r *Runner[S]) shutdown() {
	r.mu.Lock()
	r.state = stateStopped
	r.mu.Unlock()
	close(r.stopped)

	for {
		select {
		case o := <-r.queue:
			if o.done != nil {
				o.done <- ErrNotRunning
				continue
			}
			r.logger.Warn("dropped queued operation",
				slog.String("op", o.name),
				slog.Uint64("seq", o.seq),
			)
		default:
			return
		}
	}
}

// execute runs one operation, converting a panic into an error so the loop
// survives.
func (r *Runner[S]) execute(o op[S]) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("operation panicked",
				slog.String("op", o.name),
				slog.Uint64("seq", o.seq),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return o.fn(r.store)
}

func (r *Runner[S]) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateRunning
}

func (r *Runner[S]) newOp(name string, fn func(storex.Store[S]) error, wait bool) op[S] {
	o := op[S]{seq: r.seq.Add(1), name: name, fn: fn}
	if wait {
		o.done = make(chan error, 1)
	}
	return o
}

// submit enqueues o and waits for its result.
func (r *Runner[S]) submit(ctx context.Context, o op[S]) error {
	if !r.running() {
		return ErrNotRunning
	}

	select {
	case r.queue <- o:
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-o.done:
		return err
	case <-r.stopped:
		// The loop may have finished o just before exiting.
		select {
		case err := <-o.done:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn with exclusive access to the store and returns its error.
// fn must not retain the store beyond the call.
func (r *Runner[S]) Do(ctx context.Context, fn func(storex.Store[S]) error) error {
	if fn == nil {
		return fmt.Errorf("%w: fn must be a function", storex.ErrTypeMismatch)
	}
	return r.submit(ctx, r.newOp("do", fn, true))
}

// Dispatch dispatches action on the runner goroutine and returns the
// store's result.
func (r *Runner[S]) Dispatch(ctx context.Context, action any) (any, error) {
	var result any
	err := r.submit(ctx, r.newOp("dispatch", func(st storex.Store[S]) error {
		res, err := st.Dispatch(action)
		result = res
		return err
	}, true))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Send enqueues action without waiting. Failures are logged by the runner.
func (r *Runner[S]) Send(action any) error {
	if !r.running() {
		return ErrNotRunning
	}

	o := r.newOp("send", func(st storex.Store[S]) error {
		_, err := st.Dispatch(action)
		return err
	}, false)

	select {
	case r.queue <- o:
		return nil
	default:
		return ErrQueueFull
	}
}

// GetState reads the current state on the runner goroutine.
func (r *Runner[S]) GetState(ctx context.Context) (S, error) {
	var state S
	err := r.submit(ctx, r.newOp("get_state", func(st storex.Store[S]) error {
		s, err := st.GetState()
		state = s
		return err
	}, true))
	if err != nil {
		var zero S
		return zero, err
	}
	return state, nil
}

// Subscribe registers listener on the runner goroutine. The returned
// Unsubscribe goes through the runner as well and must not be called from a
// listener.
func (r *Runner[S]) Subscribe(ctx context.Context, listener storex.Listener) (storex.Unsubscribe, error) {
	var unsubscribe storex.Unsubscribe
	err := r.submit(ctx, r.newOp("subscribe", func(st storex.Store[S]) error {
		u, err := st.Subscribe(listener)
		unsubscribe = u
		return err
	}, true))
	if err != nil {
		return nil, err
	}

	return func() error {
		return r.Do(context.Background(), func(storex.Store[S]) error {
			return unsubscribe()
		})
	}, nil
}

// Observe subscribes observer to the store's observable on the runner
// goroutine. The observer receives the current state immediately and then
// every state after a dispatch, all on the runner goroutine. The returned
// Unsubscribe goes through the runner.
func (r *Runner[S]) Observe(ctx context.Context, observer storex.Observer[S]) (storex.Unsubscribe, error) {
	var sub *storex.Subscription
	err := r.submit(ctx, r.newOp("observe", func(st storex.Store[S]) error {
		s, err := st.Observable().Subscribe(observer)
		sub = s
		return err
	}, true))
	if err != nil {
		return nil, err
	}

	return func() error {
		return r.Do(context.Background(), func(storex.Store[S]) error {
			return sub.Unsubscribe()
		})
	}, nil
}
