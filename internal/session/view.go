package session

import (
	"sync"
)

// View adapts the [Store] to one UI surface.
//
// Reads pass straight through to the store. Deliveries are forwarded in store order and only when newer than the
// last delivery this view forwarded.
type View struct {
	store *Store

	mu       sync.Mutex
	sub      *subscription
	onChange func(State)
	lastSeq  uint64
	closed   bool
}

// NewView creates a view over s. It does not subscribe until [View.Subscribe] is called.
func (s *Store) NewView() *View {
	return &View{store: s}
}

// CurrentState returns the store's latest state.
func (v *View) CurrentState() State {
	return v.store.CurrentState()
}

// CurrentProfile returns the profile paired with the latest state, or nil.
func (v *View) CurrentProfile() *Profile {
	return v.store.CurrentProfile()
}

// Snapshot returns the store's latest snapshot.
func (v *View) Snapshot() Snapshot {
	return v.store.Snapshot()
}

// Subscribe routes future deliveries to fn, replacing any previous callback.
//
// The view keeps a single subscription to the store no matter how often Subscribe is called.
func (v *View) Subscribe(fn func(State)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.onChange = fn
	if v.sub == nil {
		v.sub = v.store.subscribe(v.deliver)
	}
}

// Close deregisters the view. Deliveries still queued on the main loop are dropped.
func (v *View) Close() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.onChange = nil
	v.closed = true
	v.mu.Unlock()

	if sub != nil {
		v.store.unsubscribe(sub)
	}
}

func (v *View) deliver(snap Snapshot) {
	v.mu.Lock()
	if v.closed || v.onChange == nil || snap.Seq <= v.lastSeq {
		v.mu.Unlock()
		return
	}
	v.lastSeq = snap.Seq
	fn := v.onChange
	v.mu.Unlock()

	fn(snap.State)
}
