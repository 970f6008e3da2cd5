package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/capsule/internal/navigation"
	"github.com/desertthunder/capsule/internal/session"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/desertthunder/capsule/internal/signin"
)

type signInStatus int

const (
	signInIdle signInStatus = iota
	signInStarting
	signInWaiting
	signInSucceeded
	signInFailed
)

// signInSurface lets the user start a sign-in. It never navigates by itself: leaving is up to its coordinator.
type signInSurface struct {
	id      string
	root    *Model
	binding *binding
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	status  signInStatus
	handle  *signin.Handle
	authURL string
	message string
}

func newSignInSurface(root *Model, b *binding) *signInSurface {
	return &signInSurface{
		id:      shared.GenerateID(),
		root:    root,
		binding: b,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (s *signInSurface) ID() string                { return s.id }
func (s *signInSurface) Target() navigation.Target { return navigation.SignInSurface }
func (s *signInSurface) Init() tea.Cmd             { return nil }
func (s *signInSurface) SetSize(width, _ int)      { s.help.Width = width }

func (s *signInSurface) detach() {
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
}

func (s *signInSurface) busy() bool {
	return s.status == signInStarting || s.status == signInWaiting
}

func (s *signInSurface) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.quit):
			return tea.Quit
		case key.Matches(msg, s.keys.signIn):
			if s.busy() {
				return nil
			}
			s.status = signInStarting
			s.message = ""
			return tea.Batch(s.spinner.Tick, s.begin())
		case key.Matches(msg, s.keys.cancel):
			if s.handle != nil {
				s.handle.Cancel()
			}
		}

	case Msg:
		switch msg.kind {
		case MsgSignInStarted:
			h, _ := msg.data.(*signin.Handle)
			if h == nil {
				return nil
			}
			s.handle = h
			s.authURL = h.AuthURL()
			s.status = signInWaiting
			return s.await(h)
		case MsgSignInResult:
			if result, ok := msg.data.(signin.Result); ok {
				s.finish(result)
			}
		}

	case spinner.TickMsg:
		if s.busy() {
			var cmd tea.Cmd
			s.spinner, cmd = s.spinner.Update(msg)
			return cmd
		}
	}
	return nil
}

func (s *signInSurface) begin() tea.Cmd {
	ctx, flow, id := s.root.ctx, s.root.opts.Flow, s.id
	return func() tea.Msg {
		h, err := flow.BeginSignIn(ctx)
		if err != nil {
			return signInResultMsg(id, flow.Failed(err))
		}
		return signInStartedMsg(id, h)
	}
}

func (s *signInSurface) await(h *signin.Handle) tea.Cmd {
	ctx, flow, id := s.root.ctx, s.root.opts.Flow, s.id
	return func() tea.Msg {
		return signInResultMsg(id, flow.CompleteSignIn(ctx, h.Await(ctx)))
	}
}

func (s *signInSurface) finish(result signin.Result) {
	s.handle = nil
	s.authURL = ""
	if result.Success {
		s.status = signInSucceeded
		s.message = "Signed in. Opening your journal..."
		return
	}
	s.status = signInFailed
	s.message = result.ErrorKind.Message()
}

func (s *signInSurface) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Capsule"))
	b.WriteString("\nA journal for now, and notes for later.\n\n")

	loading := s.root.opts.Store.CurrentState().Is(session.Loading)

	switch s.status {
	case signInStarting:
		fmt.Fprintf(&b, "%s Starting sign-in...\n", s.spinner.View())
	case signInWaiting:
		fmt.Fprintf(&b, "%s Waiting for Google in your browser.\n", s.spinner.View())
		fmt.Fprintf(&b, "%s\n", styles.help.Render("If nothing opened, visit: "+s.authURL))
	case signInSucceeded:
		b.WriteString(styles.ok.Render(s.message) + "\n")
	case signInFailed:
		b.WriteString(styles.err.Render(s.message) + "\n")
	default:
		if loading {
			b.WriteString(styles.warn.Render("Checking for an existing session...") + "\n")
		} else {
			b.WriteString("Sign in with Google to open your journal.\n")
		}
	}

	keys := []key.Binding{s.keys.signIn, s.keys.quit}
	if s.busy() {
		keys = []key.Binding{s.keys.cancel, s.keys.quit}
	}
	return fmt.Sprintf("%s\n%s", b.String(), s.help.ShortHelpView(keys))
}
