package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/lifecycle"
	"github.com/desertthunder/capsule/internal/mainloop"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/navigation"
	"github.com/desertthunder/capsule/internal/prompts"
	"github.com/desertthunder/capsule/internal/session"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/desertthunder/capsule/internal/signin"
)

// DefaultSealFor is how long a capsule sealed from the journal surface stays closed.
const DefaultSealFor = 30 * 24 * time.Hour

// Options holds the model's dependencies.
type Options struct {
	Store    *session.Store // defaults to the process-wide store
	Flow     *signin.Flow
	Entries  *journal.Repository
	Accounts *journal.AccountRepository // optional
	Prompts  *prompts.Generator         // optional
	Scope    *lifecycle.Scope
	Logger   *log.Logger
	Metrics  metrics.Recorder
	SealFor  time.Duration
	Now      func() time.Time
	// Start is the first surface shown. Defaults to the sign-in surface, which moves on by itself when a session exists.
	Start navigation.Target
}

// surface is one screen hosted by the root model.
type surface interface {
	ID() string
	Target() navigation.Target
	Init() tea.Cmd
	Update(tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	// detach is called when the instance stops being live.
	detach()
}

// binding is the per-surface state kept in the scope across surface instances.
type binding struct {
	view        *session.View
	coordinator *navigation.Coordinator
}

// Close closes the coordinator, which closes its view.
func (b *binding) Close() error {
	return b.coordinator.Close()
}

// Model is the root bubbletea model.
//
// Every method runs on the program goroutine. Session deliveries must reach it through [Sink].
type Model struct {
	ctx     context.Context
	opts    Options
	logger  *log.Logger
	current surface
	pending navigation.Target
	width   int
	height  int
	closed  bool
}

// NewModel creates the root model. Nothing is mounted until Init.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Store == nil {
		opts.Store = session.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Scope == nil {
		opts.Scope = lifecycle.NewScope(opts.Logger)
	}
	if opts.SealFor <= 0 {
		opts.SealFor = DefaultSealFor
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Start == 0 {
		opts.Start = navigation.SignInSurface
	}

	return &Model{
		ctx:    ctx,
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "ui"),
	}
}

// Sink forwards main loop work into p so it runs inside Update.
func Sink(p *tea.Program) mainloop.Sink {
	return func(fn func()) {
		p.Send(loopWorkMsg(fn))
	}
}

// Run shows the UI until the user quits or ctx ends.
//
// While the program runs, work posted on loop executes inside the program's Update.
func Run(ctx context.Context, loop *mainloop.Loop, opts Options, programOpts ...tea.ProgramOption) error {
	m := NewModel(ctx, opts)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, programOpts...)...)

	loop.SetSink(Sink(p))
	defer loop.SetSink(nil)
	defer m.Close()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Init mounts the start surface.
func (m *Model) Init() tea.Cmd {
	cmd := m.mount(m.opts.Start)
	return tea.Batch(cmd, m.applyNavigation())
}

// Update handles incoming messages, then performs any navigation they requested.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.current != nil {
			m.current.SetSize(msg.Width, msg.Height)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			cmd = m.reload()
		default:
			cmd = m.forward(msg)
		}

	case Msg:
		switch {
		case msg.kind == MsgLoopWork:
			if fn, ok := msg.data.(func()); ok {
				fn()
			}
		case !m.isLive(msg.surface):
			m.discard(msg)
		default:
			cmd = m.forward(msg)
		}

	default:
		cmd = m.forward(msg)
	}

	return m, tea.Batch(cmd, m.applyNavigation())
}

// View renders the live surface.
func (m *Model) View() string {
	if m.current == nil {
		return ""
	}
	return m.current.View()
}

// Close detaches the live surface and releases its binding. The model never navigates afterwards.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.pending = 0
	if m.current != nil {
		m.unmount()
	}
}

// Current returns the live surface's target and instance ID.
func (m *Model) Current() (navigation.Target, string) {
	if m.current == nil {
		return 0, ""
	}
	return m.current.Target(), m.current.ID()
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.current == nil {
		return nil
	}
	return m.current.Update(msg)
}

func (m *Model) isLive(id string) bool {
	return id == "" || (m.current != nil && m.current.ID() == id)
}

func (m *Model) discard(msg Msg) {
	m.logger.Debug("discarding message for a surface that is gone", "kind", msg.kind, "instance", msg.surface)
	if h, ok := msg.data.(*signin.Handle); ok && h != nil {
		h.Cancel()
	}
}

// requestNavigation is the [navigation.Navigator] handed to every coordinator.
func (m *Model) requestNavigation(target navigation.Target) error {
	if m.closed {
		return shared.ErrSurfaceClosed
	}
	m.pending = target
	return nil
}

func (m *Model) applyNavigation() tea.Cmd {
	var cmds []tea.Cmd
	for m.pending != 0 && !m.closed {
		target := m.pending
		m.pending = 0
		if m.current != nil {
			m.unmount()
		}
		cmds = append(cmds, m.mount(target))
	}
	return tea.Batch(cmds...)
}

// reload replaces the live surface with a fresh instance that reuses its scoped binding.
func (m *Model) reload() tea.Cmd {
	if m.current == nil {
		return nil
	}
	target := m.current.Target()
	m.current.detach()
	m.current = nil
	return m.mount(target)
}

func (m *Model) unmount() {
	prev := m.current
	m.current = nil
	prev.detach()
	m.opts.Scope.Release(scopeKey(prev.Target()))
	m.logger.Debug("surface unmounted", "surface", prev.Target(), "instance", prev.ID())
}

// mount builds a surface instance for target and runs its startup check.
func (m *Model) mount(target navigation.Target) tea.Cmd {
	b := m.bind(target)

	var s surface
	switch target {
	case navigation.MainSurface:
		s = newJournalSurface(m, b)
	default:
		s = newSignInSurface(m, b)
	}
	if m.width > 0 {
		s.SetSize(m.width, m.height)
	}
	m.current = s
	m.logger.Info("surface mounted", "surface", target, "instance", s.ID())

	if err := b.coordinator.CheckInitialState(); err != nil {
		m.logger.Error("startup navigation failed", "error", err)
	}
	b.coordinator.OnSurfaceInitialized()

	if m.pending != 0 {
		return nil
	}
	return s.Init()
}

func (m *Model) bind(target navigation.Target) *binding {
	return lifecycle.GetTyped(m.opts.Scope, scopeKey(target), func() *binding {
		view := m.opts.Store.NewView()
		nav := navigation.NavigatorFunc(m.requestNavigation)
		opts := navigation.Options{Logger: m.opts.Logger, Metrics: m.opts.Metrics}

		var c *navigation.Coordinator
		if target == navigation.MainSurface {
			c = navigation.NewSignOutCoordinator(view, nav, opts)
		} else {
			c = navigation.NewSignInCoordinator(view, nav, opts)
		}
		return &binding{view: view, coordinator: c}
	})
}

func scopeKey(target navigation.Target) string {
	return "surface/" + target.String()
}
