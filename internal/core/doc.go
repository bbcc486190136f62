// Package core provides the listener registry behind the store's
// subscription mechanism.
//
// The registry is a copy-on-write double buffer: the dispatch engine takes a
// snapshot before notifying, and later subscribe/unsubscribe calls mutate a
// private clone, never the snapshot being iterated.
//
// Not safe for concurrent use; callers serialize access the same way they
// serialize access to the store.
package core
