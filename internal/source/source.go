// Package source feeds actions from outside the store (channels, timers)
// into a serial runner.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/storex"
)

// ActionSource produces actions on a channel. The channel is closed when the
// source is exhausted or stopped.
type ActionSource interface {
	Actions() <-chan any
}

// Sender accepts actions without waiting for them to run. serial.Runner
// implements it.
type Sender interface {
	Send(action any) error
}

// ChannelSource is an ActionSource backed by a caller-owned channel.
type ChannelSource struct {
	ch chan any
}

// NewChannelSource creates a new ChannelSource with the given channel.
// The channel should be buffered if backpressure handling is needed.
func NewChannelSource(ch chan any) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Actions returns the receive-only channel for actions.
func (s *ChannelSource) Actions() <-chan any {
	return s.ch
}

// TickerSource emits an action every interval. Payload is the tick number,
// starting at 1. Ticks are dropped while the consumer is behind.
type TickerSource struct {
	ch         chan any
	actionType string
	ticker     *time.Ticker
	stop       chan struct{}
	once       sync.Once
}

// NewTickerSource creates a TickerSource emitting actionType every d.
func NewTickerSource(actionType string, d time.Duration) *TickerSource {
	t := &TickerSource{
		ch:         make(chan any, 10),
		actionType: actionType,
		ticker:     time.NewTicker(d),
		stop:       make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TickerSource) run() {
	var n uint64
	for {
		select {
		case <-t.ticker.C:
			n++
			select {
			case t.ch <- storex.Action{Type: t.actionType, Payload: n}:
			default:
				// drop if full
			}
		case <-t.stop:
			t.ticker.Stop()
			close(t.ch)
			return
		}
	}
}

// Actions returns the action channel.
func (t *TickerSource) Actions() <-chan any {
	return t.ch
}

// Stop stops the ticker and closes the channel. It is safe to call twice.
func (t *TickerSource) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Pump forwards every action from src to dst until ctx is done or src is
// exhausted. Rejected actions are logged and skipped. It returns the number
// of actions accepted by dst.
func Pump(ctx context.Context, src ActionSource, dst Sender, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	actions := src.Actions()
	accepted := 0
	for {
		select {
		case <-ctx.Done():
			return accepted
		case action, ok := <-actions:
			if !ok {
				return accepted
			}
			if err := dst.Send(action); err != nil {
				logger.Warn("action rejected",
					slog.Any("action_type", storex.TypeOf(action)),
					slog.String("error", err.Error()),
				)
				continue
			}
			accepted++
		}
	}
}
