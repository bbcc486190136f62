package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/comalice/storex"
	"github.com/comalice/storex/serial"
)

type recordingSender struct {
	mu      sync.Mutex
	actions []any
	reject  bool
}

func (s *recordingSender) Send(action any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return errors.New("rejected")
	}
	s.actions = append(s.actions, action)
	return nil
}

func TestChannelSource(t *testing.T) {
	ch := make(chan any, 1)
	s := NewChannelSource(ch)
	ch <- storex.Action{Type: "A"}
	if got := <-s.Actions(); storex.TypeOf(got) != "A" {
		t.Errorf("Actions() delivered %v", got)
	}
}

func TestTickerSource(t *testing.T) {
	s := NewTickerSource("TICK", 20*time.Millisecond)
	defer s.Stop()

	for want := uint64(1); want <= 2; want++ {
		select {
		case a := <-s.Actions():
			action, ok := a.(storex.Action)
			if !ok || action.Type != "TICK" || action.Payload != want {
				t.Errorf("wrong action: %+v, want tick %d", a, want)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("no tick %d received", want)
		}
	}
}

func TestTickerSource_Stop(t *testing.T) {
	s := NewTickerSource("TICK", 10*time.Millisecond)
	s.Stop()
	s.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.Actions():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Stop")
		}
	}
}

func TestPump_UntilClosed(t *testing.T) {
	ch := make(chan any, 3)
	ch <- storex.Action{Type: "A"}
	ch <- storex.Action{Type: "B"}
	ch <- storex.Action{Type: "C"}
	close(ch)

	dst := &recordingSender{}
	n := Pump(context.Background(), NewChannelSource(ch), dst, nil)
	if n != 3 || len(dst.actions) != 3 {
		t.Errorf("accepted %d, recorded %d, want 3", n, len(dst.actions))
	}
}

func TestPump_Rejected(t *testing.T) {
	ch := make(chan any, 1)
	ch <- storex.Action{Type: "A"}
	close(ch)

	n := Pump(context.Background(), NewChannelSource(ch), &recordingSender{reject: true}, nil)
	if n != 0 {
		t.Errorf("accepted %d, want 0", n)
	}
}

func TestPump_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int)
	go func() {
		done <- Pump(ctx, NewChannelSource(make(chan any)), &recordingSender{}, nil)
	}()
	cancel()

	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("accepted %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Pump did not return after cancel")
	}
}

func TestPump_IntoRunner(t *testing.T) {
	st, err := storex.New(storex.Pure(func(n uint64, action any) uint64 {
		if a, ok := action.(storex.Action); ok && a.Type == "TICK" {
			return a.Payload.(uint64)
		}
		return n
	}))
	if err != nil {
		t.Fatal(err)
	}
	r := serial.New(st, serial.Config{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	ch := make(chan any, 2)
	ch <- storex.Action{Type: "TICK", Payload: uint64(1)}
	ch <- storex.Action{Type: "TICK", Payload: uint64(2)}
	close(ch)

	if n := Pump(context.Background(), NewChannelSource(ch), r, nil); n != 2 {
		t.Fatalf("accepted %d, want 2", n)
	}
	got, err := r.GetState(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Errorf("state = %d, want 2", got)
	}
}

func TestPump_RunnerStoppedByParent(t *testing.T) {
	st, err := storex.New(storex.Pure(func(n int, action any) int { return n + 1 }))
	if err != nil {
		t.Fatal(err)
	}
	r := serial.New(st, serial.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	defer r.Stop()

	deadline := time.Now().Add(time.Second)
	for !errors.Is(r.Send(storex.Action{Type: "PING"}), serial.ErrNotRunning) {
		if time.Now().After(deadline) {
			t.Fatal("runner kept accepting actions after parent cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ch := make(chan any, 2)
	ch <- storex.Action{Type: "TICK"}
	ch <- storex.Action{Type: "TICK"}
	close(ch)

	if n := Pump(context.Background(), NewChannelSource(ch), r, nil); n != 0 {
		t.Errorf("accepted %d, want 0", n)
	}
	if got := r.Pending(); got != 0 {
		t.Errorf("Pending = %d, want 0", got)
	}
}
