package serial_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comalice/storex"
	"github.com/comalice/storex/serial"
)

func counter(n int, action any) int {
	if storex.TypeOf(action) == "INC" {
		return n + 1
	}
	return n
}

func startRunner(t *testing.T, cfg serial.Config) *serial.Runner[int] {
	t.Helper()
	st, err := storex.New(storex.Pure(counter))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	r := serial.New(st, cfg)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

// block occupies the runner goroutine until the returned release func is called.
func block(t *testing.T, r *serial.Runner[int]) (release func()) {
	t.Helper()
	started := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), func(storex.Store[int]) error {
			close(started)
			<-unblock
			return nil
		})
	}()
	<-started
	var once sync.Once
	return func() { once.Do(func() { close(unblock) }) }
}

func TestRunner_NotRunning(t *testing.T) {
	st, err := storex.New(storex.Pure(counter))
	if err != nil {
		t.Fatal(err)
	}
	r := serial.New(st, serial.Config{})
	ctx := context.Background()

	if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Dispatch before Start: err = %v, want ErrNotRunning", err)
	}
	if err := r.Send(storex.Action{Type: "INC"}); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Send before Start: err = %v, want ErrNotRunning", err)
	}

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(ctx); err != nil {
		t.Errorf("second Start: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	if _, err := r.GetState(ctx); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("GetState after Stop: err = %v, want ErrNotRunning", err)
	}
	if err := r.Start(ctx); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Start after Stop: err = %v, want ErrNotRunning", err)
	}
}

func TestRunner_StopWithoutStart(t *testing.T) {
	st, err := storex.New(storex.Pure(counter))
	if err != nil {
		t.Fatal(err)
	}
	r := serial.New(st, serial.Config{})
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Start after Stop: err = %v, want ErrNotRunning", err)
	}
}

func TestRunner_ConcurrentDispatch(t *testing.T) {
	r := startRunner(t, serial.Config{QueueSize: 16})
	ctx := context.Background()

	const workers, perWorker = 20, 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); err != nil {
					t.Errorf("Dispatch failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := r.GetState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != workers*perWorker {
		t.Errorf("state = %d, want %d", got, workers*perWorker)
	}
	if r.Processed() < workers*perWorker {
		t.Errorf("Processed = %d, want at least %d", r.Processed(), workers*perWorker)
	}
}

func TestRunner_DispatchReturnsAction(t *testing.T) {
	r := startRunner(t, serial.Config{})

	action := storex.Action{Type: "INC"}
	got, err := r.Dispatch(context.Background(), action)
	if err != nil {
		t.Fatal(err)
	}
	if a, ok := got.(storex.Action); !ok || a.Type != "INC" {
		t.Errorf("Dispatch returned %v, want %v", got, action)
	}

	if _, err := r.Dispatch(context.Background(), 5); !errors.Is(err, storex.ErrInvalidAction) {
		t.Errorf("err = %v, want ErrInvalidAction", err)
	}
}

func TestRunner_SendAndBackpressure(t *testing.T) {
	r := startRunner(t, serial.Config{QueueSize: 1})
	release := block(t, r)
	defer release()

	if err := r.Send(storex.Action{Type: "INC"}); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := r.Send(storex.Action{Type: "INC"}); !errors.Is(err, serial.ErrQueueFull) {
		t.Fatalf("second Send: err = %v, want ErrQueueFull", err)
	}
	if r.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", r.Pending())
	}

	release()
	got, err := r.GetState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("state = %d, want 1", got)
	}
}

func TestRunner_ContextCancelled(t *testing.T) {
	r := startRunner(t, serial.Config{})
	release := block(t, r)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.GetState(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestRunner_PanicIsRecovered(t *testing.T) {
	r := startRunner(t, serial.Config{})
	ctx := context.Background()

	err := r.Do(ctx, func(storex.Store[int]) error {
		panic("kaboom")
	})
	if !errors.Is(err, serial.ErrPanic) {
		t.Fatalf("err = %v, want ErrPanic", err)
	}

	if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); err != nil {
		t.Fatalf("Dispatch after panic: %v", err)
	}
	if got, _ := r.GetState(ctx); got != 1 {
		t.Errorf("state = %d, want 1", got)
	}
}

func TestRunner_DoNil(t *testing.T) {
	r := startRunner(t, serial.Config{})
	if err := r.Do(context.Background(), nil); !errors.Is(err, storex.ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestRunner_Subscribe(t *testing.T) {
	r := startRunner(t, serial.Config{})
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	unsubscribe, err := r.Subscribe(ctx, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); err != nil {
		t.Fatal(err)
	}
	if err := unsubscribe(); err != nil {
		t.Fatal(err)
	}
	if err := unsubscribe(); err != nil {
		t.Errorf("second unsubscribe: %v", err)
	}
	if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestRunner_Observe(t *testing.T) {
	r := startRunner(t, serial.Config{})
	ctx := context.Background()

	states := make(chan int, 4)
	unsubscribe, err := r.Observe(ctx, storex.ObserverFunc[int](func(s int) { states <- s }))
	if err != nil {
		t.Fatal(err)
	}
	defer unsubscribe()

	if _, err := r.Dispatch(ctx, storex.Action{Type: "INC"}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []int{0, 1} {
		select {
		case got := <-states:
			if got != want {
				t.Errorf("observed %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for state %d", want)
		}
	}
}

func TestRunner_ParentContextStopsLoop(t *testing.T) {
	st, err := storex.New(storex.Pure(counter))
	if err != nil {
		t.Fatal(err)
	}
	r := serial.New(st, serial.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		_, err := r.GetState(context.Background())
		if errors.Is(err, serial.ErrNotRunning) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("runner still serving after parent cancel, last err = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := r.Send(storex.Action{Type: "INC"}); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Send after parent cancel err = %v, want ErrNotRunning", err)
	}
	if _, err := r.Dispatch(context.Background(), storex.Action{Type: "INC"}); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("Dispatch after parent cancel err = %v, want ErrNotRunning", err)
	}
	if got := r.Pending(); got != 0 {
		t.Errorf("Pending = %d, want 0", got)
	}
	if got := r.Processed(); got != 0 {
		t.Errorf("Processed = %d, want 0", got)
	}
	if err := r.Start(context.Background()); !errors.Is(err, serial.ErrNotRunning) {
		t.Errorf("restart after parent cancel err = %v, want ErrNotRunning", err)
	}

	if err := r.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if got, err := st.GetState(); err != nil || got != 0 {
		t.Errorf("store state = %d/%v, want 0/nil", got, err)
	}
}
