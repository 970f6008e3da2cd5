package navigation

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/identity"
	"github.com/desertthunder/capsule/internal/mainloop"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/session"
	tu "github.com/desertthunder/capsule/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var u1 = &identity.Principal{Subject: "u1", Email: "a@b.com"}

type harness struct {
	provider *tu.MockProvider
	store    *session.Store
	loop     *mainloop.Loop
	opts     Options
}

func newHarness(t *testing.T, initial *identity.Principal) *harness {
	t.Helper()
	loop := mainloop.New()
	t.Cleanup(loop.Close)

	provider := tu.NewMockProvider(initial)
	store, err := session.NewStore(provider, session.Options{Loop: loop, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(store.Close)

	return &harness{
		provider: provider,
		store:    store,
		loop:     loop,
		opts:     Options{Logger: log.New(io.Discard)},
	}
}

// onLoop runs fn on the main loop and waits for it.
func (h *harness) onLoop(fn func()) {
	h.loop.Do(fn)
}

func TestTarget(t *testing.T) {
	if SignInSurface.String() != "sign_in" || MainSurface.String() != "main" {
		t.Errorf("unexpected target names %q %q", SignInSurface, MainSurface)
	}
	if Target(9).String() != "target(9)" {
		t.Errorf("unexpected unknown target name %q", Target(9))
	}
}

func TestCoordinatorScenarios(t *testing.T) {
	t.Run("Sign In Surface Navigates Once After Sign In", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}

		var c *Coordinator
		h.onLoop(func() {
			c = NewSignInCoordinator(h.store.NewView(), nav, h.opts)
			if err := c.CheckInitialState(); err != nil {
				t.Errorf("CheckInitialState() error = %v", err)
			}
			c.OnSurfaceInitialized()
		})
		if nav.Count() != 0 {
			t.Fatal("unauthenticated startup must not navigate")
		}

		h.provider.SetPrincipal(u1)
		h.provider.SetPrincipal(u1)
		h.loop.Flush()

		if got := nav.Calls(); len(got) != 1 || got[0] != MainSurface {
			t.Errorf("expected one navigation to main, got %v", got)
		}
		if !c.HasNavigatedAway() {
			t.Error("expected guard to be set")
		}
	})

	t.Run("Startup Check Navigates And Feed Is Ignored", func(t *testing.T) {
		h := newHarness(t, u1)
		nav := &tu.RecordingNavigator[Target]{}

		var c *Coordinator
		h.onLoop(func() {
			c = NewSignInCoordinator(h.store.NewView(), nav, h.opts)
			if err := c.CheckInitialState(); err != nil {
				t.Errorf("CheckInitialState() error = %v", err)
			}
		})
		if nav.Count() != 1 {
			t.Fatalf("expected startup navigation, got %d", nav.Count())
		}
		if c.Phase() != Settled {
			t.Error("navigating at startup must settle the coordinator")
		}

		h.onLoop(c.OnSurfaceInitialized)
		h.provider.SetPrincipal(u1)
		h.loop.Flush()

		if nav.Count() != 1 {
			t.Errorf("redundant delivery must not navigate again, got %d", nav.Count())
		}
	})

	t.Run("Ambient Sign Out Navigates Once", func(t *testing.T) {
		h := newHarness(t, u1)
		nav := &tu.RecordingNavigator[Target]{}

		h.onLoop(func() {
			c := NewSignOutCoordinator(h.store.NewView(), nav, h.opts)
			if err := c.CheckInitialState(); err != nil {
				t.Errorf("CheckInitialState() error = %v", err)
			}
			c.OnSurfaceInitialized()
		})

		h.provider.SetPrincipal(nil)
		h.provider.SetPrincipal(nil)
		h.loop.Flush()

		if got := nav.Calls(); len(got) != 1 || got[0] != SignInSurface {
			t.Errorf("expected one navigation to sign-in, got %v", got)
		}
	})

	t.Run("Cancelled Sign In Does Not Navigate", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}

		h.onLoop(func() {
			c := NewSignInCoordinator(h.store.NewView(), nav, h.opts)
			c.CheckInitialState()
			c.OnSurfaceInitialized()
		})

		// a cancelled attempt produces no provider change
		h.loop.Flush()
		if nav.Count() != 0 {
			t.Errorf("expected no navigation, got %d", nav.Count())
		}
		if h.store.Snapshot().Seq != 1 {
			t.Error("no state should be published")
		}
	})

	t.Run("Coordinators Keep Independent Guards", func(t *testing.T) {
		h := newHarness(t, nil)
		signInNav := &tu.RecordingNavigator[Target]{}
		mainNav := &tu.RecordingNavigator[Target]{}

		var signIn, main *Coordinator
		h.onLoop(func() {
			signIn = NewSignInCoordinator(h.store.NewView(), signInNav, h.opts)
			signIn.CheckInitialState()
			signIn.OnSurfaceInitialized()

			main = NewSignOutCoordinator(h.store.NewView(), mainNav, h.opts)
			main.OnSurfaceInitialized()
		})

		h.provider.SetPrincipal(u1)
		h.loop.Flush()
		if !signIn.HasNavigatedAway() || main.HasNavigatedAway() {
			t.Fatalf("sign-in guard=%v main guard=%v", signIn.HasNavigatedAway(), main.HasNavigatedAway())
		}

		h.provider.SetPrincipal(nil)
		h.loop.Flush()
		if mainNav.Count() != 1 || signInNav.Count() != 1 {
			t.Errorf("expected one navigation each, got sign-in=%d main=%d", signInNav.Count(), mainNav.Count())
		}
	})
}

func TestCoordinatorGuards(t *testing.T) {
	t.Run("Attempt Navigate Is Idempotent", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}
		c := NewSignInCoordinator(h.store.NewView(), nav, h.opts)

		for range 5 {
			if err := c.attemptNavigate("test"); err != nil {
				t.Fatalf("attemptNavigate() error = %v", err)
			}
		}
		if nav.Count() != 1 {
			t.Errorf("expected exactly one navigation, got %d", nav.Count())
		}
	})

	t.Run("Deliveries During Initialization Are Discarded", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector(reg)

		c := NewSignInCoordinator(h.store.NewView(), nav, Options{Logger: log.New(io.Discard), Metrics: collector})
		h.provider.SetPrincipal(u1)
		h.loop.Flush()

		if nav.Count() != 0 {
			t.Fatalf("delivery before initialization must not navigate, got %d", nav.Count())
		}
		if c.Phase() != Initializing {
			t.Errorf("expected initializing, got %v", c.Phase())
		}

		c.OnSurfaceInitialized()
		if nav.Count() != 0 {
			t.Error("settling must not replay discarded deliveries")
		}

		gathered, err := testutil.GatherAndCount(reg, "capsule_navigation_suppressed_total")
		if err != nil || gathered != 1 {
			t.Errorf("expected one suppression series, got %d (%v)", gathered, err)
		}
	})

	t.Run("Startup Check Then Delivery Fires Once", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}

		var c *Coordinator
		h.onLoop(func() {
			c = NewSignOutCoordinator(h.store.NewView(), nav, h.opts)
			c.CheckInitialState()
			c.OnSurfaceInitialized()
		})

		h.provider.SetPrincipal(nil)
		h.loop.Flush()

		if nav.Count() != 1 {
			t.Errorf("expected one navigation, got %d", nav.Count())
		}
	})

	t.Run("Surface Read Does Not Hide Queued Sign Out", func(t *testing.T) {
		h := newHarness(t, u1)
		nav := &tu.RecordingNavigator[Target]{}
		view := h.store.NewView()

		h.onLoop(func() {
			c := NewSignOutCoordinator(view, nav, h.opts)
			if err := c.CheckInitialState(); err != nil {
				t.Errorf("CheckInitialState() error = %v", err)
			}
			c.OnSurfaceInitialized()
		})

		held := make(chan func(), 16)
		h.loop.SetSink(func(fn func()) { held <- fn })

		h.provider.SetPrincipal(nil)
		deliver := <-held

		// The surface renders from its view while the sign-out is still queued.
		if p := view.CurrentProfile(); p != nil {
			t.Fatalf("expected no profile after sign-out, got %+v", p)
		}
		deliver()

		if got := nav.Calls(); len(got) != 1 || got[0] != SignInSurface {
			t.Errorf("expected one navigation to sign-in, got %v", got)
		}
	})

	t.Run("Closed Coordinator Never Navigates", func(t *testing.T) {
		h := newHarness(t, nil)
		nav := &tu.RecordingNavigator[Target]{}

		c := NewSignInCoordinator(h.store.NewView(), nav, h.opts)
		c.OnSurfaceInitialized()
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}

		h.provider.SetPrincipal(u1)
		h.loop.Flush()
		if err := c.attemptNavigate("late"); err != nil {
			t.Fatal(err)
		}
		if nav.Count() != 0 {
			t.Errorf("closed coordinator navigated %d times", nav.Count())
		}
	})

	t.Run("Navigation Failure Surfaces Without Retry", func(t *testing.T) {
		h := newHarness(t, u1)
		nav := &tu.RecordingNavigator[Target]{Err: errors.New("program exited")}

		c := NewSignInCoordinator(h.store.NewView(), nav, h.opts)
		err := c.CheckInitialState()
		if err == nil {
			t.Fatal("expected navigation error to surface")
		}
		if !errors.Is(c.LastError(), nav.Err) {
			t.Errorf("LastError() = %v", c.LastError())
		}

		c.OnSurfaceInitialized()
		h.provider.SetPrincipal(u1)
		h.loop.Flush()
		if nav.Count() != 1 {
			t.Errorf("failed navigation must not be retried, got %d attempts", nav.Count())
		}
	})

	t.Run("Fresh Instance Can Navigate Again", func(t *testing.T) {
		h := newHarness(t, u1)
		first := &tu.RecordingNavigator[Target]{}
		c := NewSignInCoordinator(h.store.NewView(), first, h.opts)
		c.CheckInitialState()
		c.Close()

		second := &tu.RecordingNavigator[Target]{}
		fresh := NewSignInCoordinator(h.store.NewView(), second, h.opts)
		if fresh.HasNavigatedAway() {
			t.Fatal("a new instance starts with a cleared guard")
		}
		fresh.CheckInitialState()
		if second.Count() != 1 {
			t.Errorf("expected fresh instance to navigate, got %d", second.Count())
		}
	})
}

func TestNavigatorFunc(t *testing.T) {
	var got Target
	var n Navigator = NavigatorFunc(func(target Target) error {
		got = target
		return nil
	})
	n.Navigate(MainSurface)
	if got != MainSurface {
		t.Errorf("expected main, got %v", got)
	}
}
