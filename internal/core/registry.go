package core

import "slices"

// Slot is one registered listener. Its address is its identity, so the same
// function may be registered more than once and removed one slot at a time.
type Slot struct {
	fn func()
}

// Call invokes the listener held by the slot.
func (s *Slot) Call() {
	s.fn()
}

// Registry keeps the notified list (current) and the working list (next).
// While shared is true both name the same backing array and next must be
// cloned before it is mutated.
type Registry struct {
	current []*Slot
	next    []*Slot
	shared  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{shared: true}
}

// ensureMutable detaches next from the published snapshot.
func (r *Registry) ensureMutable() {
	if r.shared {
		r.next = slices.Clone(r.current)
		r.shared = false
	}
}

// Add appends a listener to the working list and returns its slot.
func (r *Registry) Add(fn func()) *Slot {
	r.ensureMutable()
	slot := &Slot{fn: fn}
	r.next = append(r.next, slot)
	return slot
}

// Remove deletes slot from the working list. It reports whether the slot was found.
func (r *Registry) Remove(slot *Slot) bool {
	r.ensureMutable()
	i := slices.Index(r.next, slot)
	if i < 0 {
		return false
	}
	r.next = slices.Delete(r.next, i, i+1)
	return true
}

// Snapshot publishes the working list as the notified list and returns it.
// The returned slice must be treated as read-only.
func (r *Registry) Snapshot() []*Slot {
	r.current = r.next
	r.shared = true
	return r.current
}

// Len returns the number of listeners in the working list.
func (r *Registry) Len() int {
	return len(r.next)
}
