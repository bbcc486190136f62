package production

import (
	"sync"
	"sync/atomic"
)

// ChannelPublisher is an observer forwarding every state to a Go channel.
// Non-blocking publish with drop on backpressure.
type ChannelPublisher[S any] struct {
	mu      sync.RWMutex
	ch      chan<- S
	closed  bool
	dropped atomic.Uint64
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher[S any](ch chan<- S) *ChannelPublisher[S] {
	return &ChannelPublisher[S]{ch: ch}
}

// Next publishes state, dropping it when the channel is full or closed.
func (p *ChannelPublisher[S]) Next(state S) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.ch <- state:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of states that could not be delivered.
func (p *ChannelPublisher[S]) Dropped() uint64 {
	return p.dropped.Load()
}

// Close closes the output channel. Later states are dropped.
func (p *ChannelPublisher[S]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.ch)
	return nil
}
