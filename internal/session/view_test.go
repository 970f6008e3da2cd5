package session

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/identity"
	"github.com/desertthunder/capsule/internal/mainloop"
	tu "github.com/desertthunder/capsule/internal/testing"
)

// heldLoop captures posted work so a test can interleave snapshot reads with deliveries.
type heldLoop struct {
	loop    *mainloop.Loop
	pending chan func()
}

func newHeldLoop(t *testing.T) *heldLoop {
	t.Helper()
	h := &heldLoop{loop: mainloop.New(), pending: make(chan func(), 64)}
	h.loop.SetSink(func(fn func()) { h.pending <- fn })
	t.Cleanup(h.loop.Close)
	return h
}

// runNext runs the oldest captured item, waiting for the loop to hand it over.
func (h *heldLoop) runNext(t *testing.T) {
	t.Helper()
	(<-h.pending)()
}

func TestView(t *testing.T) {
	t.Run("Pass Through Snapshots", func(t *testing.T) {
		s, _ := newTestStore(t, tu.NewMockProvider(alice))
		v := s.NewView()
		defer v.Close()

		if !v.CurrentState().Is(Authenticated) {
			t.Errorf("expected authenticated, got %v", v.CurrentState())
		}
		if p := v.CurrentProfile(); p == nil || p.ID != "u1" {
			t.Errorf("unexpected profile %+v", p)
		}
	})

	t.Run("Delivers Changes In Order", func(t *testing.T) {
		provider := tu.NewMockProvider(nil)
		s, loop := newTestStore(t, provider)
		v := s.NewView()
		defer v.Close()

		var got []Kind
		v.Subscribe(func(st State) { got = append(got, st.Kind()) })

		provider.SetPrincipal(alice)
		provider.SetPrincipal(nil)
		provider.SetPrincipal(alice)
		loop.Flush()

		want := []Kind{Authenticated, Unauthenticated, Authenticated}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("delivery %d = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("Redundant States Still Delivered", func(t *testing.T) {
		provider := tu.NewMockProvider(nil)
		s, loop := newTestStore(t, provider)
		v := s.NewView()
		defer v.Close()

		count := 0
		v.Subscribe(func(State) { count++ })

		provider.SetPrincipal(nil)
		provider.SetPrincipal(nil)
		loop.Flush()

		if count != 2 {
			t.Errorf("expected 2 deliveries, got %d", count)
		}
	})

	t.Run("Reads Do Not Suppress Queued Deliveries", func(t *testing.T) {
		held := newHeldLoop(t)
		provider := tu.NewMockProvider(nil)
		s, err := NewStore(provider, Options{Loop: held.loop, Logger: log.New(io.Discard)})
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		v := s.NewView()
		defer v.Close()
		var got []State
		v.Subscribe(func(st State) { got = append(got, st) })

		provider.SetPrincipal(alice)
		provider.SetPrincipal(nil)

		// The surface reads the latest state before either delivery runs.
		if !v.CurrentState().Is(Unauthenticated) {
			t.Fatalf("expected snapshot to see latest state")
		}
		if v.CurrentProfile() != nil || v.Snapshot().Seq != s.Snapshot().Seq {
			t.Fatalf("view reads must match the store")
		}

		held.runNext(t)
		held.runNext(t)

		if len(got) != 2 || !got[0].Is(Authenticated) || !got[1].Is(Unauthenticated) {
			t.Errorf("expected both queued deliveries, got %v", got)
		}
	})

	t.Run("Single Subscription Per View", func(t *testing.T) {
		provider := tu.NewMockProvider(nil)
		s, loop := newTestStore(t, provider)
		v := s.NewView()
		defer v.Close()

		var first, second int
		v.Subscribe(func(State) { first++ })
		v.Subscribe(func(State) { second++ })

		if s.subscriberCount() != 1 {
			t.Fatalf("expected one store subscription, got %d", s.subscriberCount())
		}

		provider.SetPrincipal(alice)
		loop.Flush()

		if first != 0 || second != 1 {
			t.Errorf("expected only the latest callback to run, got first=%d second=%d", first, second)
		}
	})

	t.Run("Close Deregisters", func(t *testing.T) {
		held := newHeldLoop(t)
		provider := tu.NewMockProvider(nil)
		s, err := NewStore(provider, Options{Loop: held.loop, Logger: log.New(io.Discard)})
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		v := s.NewView()
		count := 0
		v.Subscribe(func(State) { count++ })

		provider.SetPrincipal(alice)
		v.Close()
		held.runNext(t)

		if count != 0 {
			t.Error("queued delivery must not reach a closed view")
		}
		if s.subscriberCount() != 0 {
			t.Errorf("expected no subscriptions, got %d", s.subscriberCount())
		}

		v.Subscribe(func(State) { count++ })
		if s.subscriberCount() != 0 {
			t.Error("closed view must not resubscribe")
		}
	})

	t.Run("Views Are Independent", func(t *testing.T) {
		provider := tu.NewMockProvider(nil)
		s, loop := newTestStore(t, provider)

		a, b := s.NewView(), s.NewView()
		defer b.Close()
		var gotA, gotB int
		a.Subscribe(func(State) { gotA++ })
		b.Subscribe(func(State) { gotB++ })

		provider.SetPrincipal(&identity.Principal{Subject: "u2"})
		a.Close()
		provider.SetPrincipal(nil)
		loop.Flush()

		if gotA > 1 || gotB != 2 {
			t.Errorf("unexpected deliveries a=%d b=%d", gotA, gotB)
		}
	})
}
