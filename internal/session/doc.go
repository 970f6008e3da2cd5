// Package session holds the process-wide authentication state and adapts it to individual UI surfaces.
//
// # Store
//
// [Store] is the single writer of session [State]. It reads the identity provider's current principal once at
// construction and then listens for provider changes. Each change becomes a new [Snapshot] with a higher sequence
// number, swapped in atomically so [Store.CurrentState] never blocks and never observes a half-written value.
// The snapshot is then posted to the main loop, which fans it out to subscribers in the order the store produced it.
//
// Provider errors delivered through the listener are transient: they are logged and the last known state is kept.
// A provider that refuses the listener registration makes construction fail with [ErrListenerRegistration].
//
// # View
//
// [View] is the per-surface adapter. It holds at most one subscription to the store, drops deliveries that are not
// newer than what the surface has already seen (including its own startup snapshot), and deregisters on Close.
package session
