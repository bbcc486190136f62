package production

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/storex"
	"github.com/comalice/storex/internal/primitives"
)

// DefaultHistorySize is the number of entries kept by an Inspector when no
// limit is given.
const DefaultHistorySize = 256

// Entry is one recorded dispatch.
type Entry[S any] struct {
	Seq         uint64    `json:"seq" yaml:"seq"`
	Type        string    `json:"type" yaml:"type"`
	Action      any       `json:"action" yaml:"action"`
	State       S         `json:"state" yaml:"state"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Inspector records the dispatches of a store in a bounded history, oldest
// entries evicted first. Install it with Enhancer.
type Inspector[S any] struct {
	mu      sync.RWMutex
	limit   int
	entries []Entry[S]
	seq     uint64
	now     func() time.Time
}

// NewInspector creates an Inspector keeping at most limit entries
// (DefaultHistorySize when limit <= 0).
func NewInspector[S any](limit int) *Inspector[S] {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &Inspector[S]{
		limit:   limit,
		entries: make([]Entry[S], 0, min(limit, 64)),
		now:     time.Now,
	}
}

// Enhancer returns the enhancer recording into i. Only caller dispatches are
// recorded; the internal INIT and REPLACE actions are not.
func (i *Inspector[S]) Enhancer() storex.Enhancer[S] {
	return func(next storex.Factory[S]) storex.Factory[S] {
		return func(reducer storex.Reducer[S], opts ...storex.Option) (storex.Store[S], error) {
			inner, err := next(reducer, opts...)
			if err != nil {
				return nil, err
			}
			return &inspectedStore[S]{Store: inner, inspector: i}, nil
		}
	}
}

type inspectedStore[S any] struct {
	storex.Store[S]
	inspector *Inspector[S]
}

func (s *inspectedStore[S]) Dispatch(action any) (any, error) {
	result, err := s.Store.Dispatch(action)
	// Invalid actions never reach the reducer.
	if !errors.Is(err, storex.ErrInvalidAction) {
		state, stateErr := s.Store.GetState()
		if stateErr == nil {
			s.inspector.record(action, state, err)
		}
	}
	return result, err
}

func (s *inspectedStore[S]) Observable() storex.Observable[S] {
	return storex.NewObservable[S](s)
}

func (i *Inspector[S]) record(action any, state S, dispatchErr error) {
	e := Entry[S]{
		Type:        fmt.Sprint(storex.TypeOf(action)),
		Action:      action,
		State:       state,
		Fingerprint: primitives.Fingerprint(state),
		Timestamp:   i.now(),
	}
	if dispatchErr != nil {
		e.Error = dispatchErr.Error()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.seq++
	e.Seq = i.seq
	if len(i.entries) == i.limit {
		copy(i.entries, i.entries[1:])
		i.entries = i.entries[:len(i.entries)-1]
	}
	i.entries = append(i.entries, e)
}

// Entries returns a copy of the recorded history, oldest first.
func (i *Inspector[S]) Entries() []Entry[S] {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Entry[S](nil), i.entries...)
}

// Len returns the number of entries currently held.
func (i *Inspector[S]) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Last returns the most recent entry.
func (i *Inspector[S]) Last() (Entry[S], bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.entries) == 0 {
		return Entry[S]{}, false
	}
	return i.entries[len(i.entries)-1], true
}

// Reset drops the history. Sequence numbers keep increasing.
func (i *Inspector[S]) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = i.entries[:0]
}

// ExportYAML writes the history to w as a YAML sequence.
func (i *Inspector[S]) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(i.Entries()); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("yaml close: %w", err)
	}
	return nil
}

// ExportJSON writes the history to w as an indented JSON array.
func (i *Inspector[S]) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(i.Entries()); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
