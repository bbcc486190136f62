// Package primitives provides the foundational, dependency-light helpers
// shared by the store engine and its integrations.
//
// It answers three questions for the rest of the module:
//   - is a value a plain data record that may be dispatched as an action
//   - what is the discriminator ("type") of such a record
//   - which action types are reserved for store lifecycle events
//
// Core invariants:
//   - Records with behaviour (any declared method) are never plain
//   - Zero-valued discriminators count as absent
//   - Lifecycle tokens are generated once per process and never change
package primitives
