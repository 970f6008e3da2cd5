package navigation

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/session"
	"github.com/desertthunder/capsule/internal/shared"
)

// Target is a navigable surface.
type Target int

const (
	SignInSurface Target = iota + 1
	MainSurface
)

func (t Target) String() string {
	switch t {
	case SignInSurface:
		return "sign_in"
	case MainSurface:
		return "main"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Navigator performs the actual navigation side effect.
type Navigator interface {
	Navigate(Target) error
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(Target) error

func (f NavigatorFunc) Navigate(t Target) error { return f(t) }

// Phase is the coordinator's position in the surface lifecycle.
type Phase int

const (
	Initializing Phase = iota
	Settled
)

func (p Phase) String() string {
	if p == Settled {
		return "settled"
	}
	return "initializing"
}

// Options configures a [Coordinator].
type Options struct {
	Logger  *log.Logger
	Metrics metrics.Recorder
}

// Coordinator guards navigation for one surface instance.
type Coordinator struct {
	trigger session.Kind
	target  Target
	view    *session.View
	nav     Navigator
	logger  *log.Logger
	metrics metrics.Recorder

	mu        sync.Mutex
	phase     Phase
	navigated bool
	closed    bool
	lastErr   error
}

// New creates a coordinator that navigates to target when the session becomes trigger.
//
// The coordinator subscribes to view immediately so deliveries that arrive during startup are observed and discarded.
func New(view *session.View, trigger session.Kind, target Target, nav Navigator, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	c := &Coordinator{
		trigger: trigger,
		target:  target,
		view:    view,
		nav:     nav,
		logger:  shared.WithLogger(opts.Logger, "component", "navigation", "target", target),
		metrics: opts.Metrics,
	}
	view.Subscribe(c.onChange)
	return c
}

// NewSignOutCoordinator navigates the main surface to sign-in when the session ends.
func NewSignOutCoordinator(view *session.View, nav Navigator, opts Options) *Coordinator {
	return New(view, session.Unauthenticated, SignInSurface, nav, opts)
}

// NewSignInCoordinator navigates the sign-in surface to the main surface once signed in.
func NewSignInCoordinator(view *session.View, nav Navigator, opts Options) *Coordinator {
	return New(view, session.Authenticated, MainSurface, nav, opts)
}

// CheckInitialState performs the surface's synchronous startup check.
//
// If the current state already calls for navigation the coordinator navigates and settles.
func (c *Coordinator) CheckInitialState() error {
	state := c.view.CurrentState()
	c.logger.Debug("startup check", "state", state)
	if !state.Is(c.trigger) {
		return nil
	}
	return c.attemptNavigate("startup")
}

// OnSurfaceInitialized marks the end of startup. Deliveries after this point may navigate.
func (c *Coordinator) OnSurfaceInitialized() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = Settled
}

// HasNavigatedAway reports whether this instance has already navigated.
func (c *Coordinator) HasNavigatedAway() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigated
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Target returns the surface this coordinator navigates to.
func (c *Coordinator) Target() Target {
	return c.target
}

// LastError returns the error from the navigation side effect, if it failed.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close deregisters the view. A closed coordinator never navigates.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.view.Close()
	return nil
}

func (c *Coordinator) onChange(state session.State) {
	c.mu.Lock()
	phase, closed := c.phase, c.closed
	c.mu.Unlock()

	switch {
	case closed:
		c.metrics.RecordNavigationSuppressed(metrics.ReasonClosed)
		return
	case phase == Initializing:
		c.logger.Debug("discarding delivery during initialization", "state", state)
		c.metrics.RecordNavigationSuppressed(metrics.ReasonInitializing)
		return
	case !state.Is(c.trigger):
		return
	}

	if err := c.attemptNavigate("delivery"); err != nil {
		c.logger.Error("navigation failed", "error", err)
	}
}

// attemptNavigate is the only call site of the navigation side effect.
func (c *Coordinator) attemptNavigate(source string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("coordinator closed; not navigating", "source", source)
		c.metrics.RecordNavigationSuppressed(metrics.ReasonClosed)
		return nil
	}
	if c.navigated {
		c.mu.Unlock()
		c.logger.Debug("already navigated; ignoring", "source", source)
		c.metrics.RecordNavigationSuppressed(metrics.ReasonNavigated)
		return nil
	}
	c.navigated = true
	c.phase = Settled
	c.mu.Unlock()

	c.logger.Info("navigating", "source", source)
	c.metrics.RecordNavigation(c.target.String())

	if err := c.nav.Navigate(c.target); err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("navigate to %s: %w", c.target, err)
	}
	return nil
}
