package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/identity"
	"github.com/desertthunder/capsule/internal/mainloop"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/shared"
)

// ErrListenerRegistration is returned when the identity provider rejects the store's change listener.
var ErrListenerRegistration = errors.New("session: provider listener registration failed")

// Options configures a [Store].
type Options struct {
	// Loop is the main execution context deliveries run on. A private loop is started when nil.
	Loop    *mainloop.Loop
	Logger  *log.Logger
	Metrics metrics.Recorder
}

type subscription struct {
	fn      func(Snapshot)
	removed atomic.Bool
}

// Store is the single source of truth for the ambient session.
type Store struct {
	provider identity.Provider
	loop     *mainloop.Loop
	logger   *log.Logger
	metrics  metrics.Recorder

	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   []*subscription
	remove func()
	closed bool
}

var (
	instanceMu sync.Mutex
	instance   *Store
)

// Initialize returns the process-wide store, creating it on first call.
//
// Later calls return the existing instance and ignore their arguments.
func Initialize(provider identity.Provider, opts Options) (*Store, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance, nil
	}

	s, err := NewStore(provider, opts)
	if err != nil {
		return nil, err
	}
	instance = s
	return s, nil
}

// Default returns the store created by [Initialize], or nil.
func Default() *Store {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// NewStore creates a store that is not registered as the process-wide instance.
func NewStore(provider identity.Provider, opts Options) (*Store, error) {
	if opts.Loop == nil {
		opts.Loop = mainloop.New()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	s := &Store{
		provider: provider,
		loop:     opts.Loop,
		logger:   shared.WithLogger(opts.Logger, "component", "session"),
		metrics:  opts.Metrics,
	}

	// Listen before reading so no change between the two is lost.
	s.current.Store(&Snapshot{Seq: 1, State: LoadingState()})
	remove, err := provider.AddChangeListener(s.onProviderChange)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListenerRegistration, err)
	}

	initial := LoadingState()
	principal, err := provider.CurrentPrincipal()
	if err != nil {
		s.logger.Warn("could not read current principal; waiting for provider", "error", err)
	} else {
		initial = stateFromPrincipal(principal)
	}

	s.mu.Lock()
	s.remove = remove
	if s.current.Load().Seq == 1 {
		s.current.Store(&Snapshot{Seq: 1, State: initial})
	}
	current := s.current.Load().State
	s.mu.Unlock()

	s.metrics.RecordSessionTransition(initial.Kind().String())
	s.logger.Info("session initialized", "state", current)

	return s, nil
}

// CurrentState returns the latest state without blocking.
func (s *Store) CurrentState() State {
	return s.current.Load().State
}

// CurrentProfile returns the profile of the latest state, or nil when not authenticated.
func (s *Store) CurrentProfile() *Profile {
	return s.current.Load().State.Profile()
}

// Snapshot returns the latest state together with its sequence number.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// SignOut asks the provider to end the ambient session.
//
// The store's state changes only when the provider reports the change back through its listener.
func (s *Store) SignOut() error {
	if err := s.provider.SignOut(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Close removes the provider listener. Subscribers receive nothing further.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.remove != nil {
		s.remove()
	}
	for _, sub := range s.subs {
		sub.removed.Store(true)
	}
	s.subs = nil
}

func (s *Store) onProviderChange(ev identity.ChangeEvent) {
	if ev.Err != nil {
		s.logger.Warn("ignoring transient provider error", "error", ev.Err)
		return
	}
	s.publish(stateFromPrincipal(ev.Principal))
}

// publish stamps state and queues its delivery.
//
// The swap and the post happen under one lock so queue order matches sequence order.
func (s *Store) publish(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	prev := s.current.Load()
	snap := Snapshot{Seq: prev.Seq + 1, State: state}
	s.current.Store(&snap)

	if prev.State.Equal(state) {
		s.logger.Debug("session state re-delivered", "state", state, "seq", snap.Seq)
	} else {
		s.logger.Info("session state changed", "from", prev.State, "to", state, "seq", snap.Seq)
	}
	s.metrics.RecordSessionTransition(state.Kind().String())

	s.loop.Post(func() { s.deliver(snap) })
}

// deliver runs on the main loop.
func (s *Store) deliver(snap Snapshot) {
	s.mu.Lock()
	subs := append([]*subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		sub.fn(snap)
	}
}

func (s *Store) subscribe(fn func(Snapshot)) *subscription {
	sub := &subscription{fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.removed.Store(true)
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

func (s *Store) unsubscribe(sub *subscription) {
	sub.removed.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Store) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
