package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/navigation"
	"github.com/desertthunder/capsule/internal/prompts"
	"github.com/desertthunder/capsule/internal/shared"
)

type journalMode int

const (
	browsing journalMode = iota
	composing
)

// journalSurface is the main surface. Signing out only asks the store; its coordinator handles leaving.
type journalSurface struct {
	id      string
	root    *Model
	binding *binding
	keys    keyMap
	help    help.Model

	userID string
	name   string

	mode    journalMode
	list    list.Model
	entries []*journal.Entry
	title   textinput.Model
	body    textarea.Model
	prompt  prompts.Prompt

	status    string
	statusErr bool
}

func newJournalSurface(root *Model, b *binding) *journalSurface {
	s := &journalSurface{
		id:      shared.GenerateID(),
		root:    root,
		binding: b,
		keys:    newKeyMap(),
		help:    help.New(),
		list:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		title:   textinput.New(),
		body:    textarea.New(),
	}

	if p := root.opts.Store.CurrentProfile(); p != nil {
		s.userID = p.ID
		s.name = p.Name()
	}

	s.list.Title = "Journal"
	s.list.SetShowHelp(false)
	s.title.Placeholder = "Title"
	s.title.CharLimit = 120
	s.body.Placeholder = "Write freely..."
	return s
}

func (s *journalSurface) ID() string                { return s.id }
func (s *journalSurface) Target() navigation.Target { return navigation.MainSurface }
func (s *journalSurface) detach()                   {}

func (s *journalSurface) Init() tea.Cmd {
	s.touchAccount()
	return s.load()
}

func (s *journalSurface) SetSize(width, height int) {
	s.help.Width = width
	s.list.SetSize(width-4, max(height-8, 4))
	s.title.Width = width - 6
	s.body.SetWidth(width - 4)
	s.body.SetHeight(max(height-14, 3))
}

func (s *journalSurface) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s.mode == composing {
			return s.updateCompose(msg)
		}
		return s.updateBrowse(msg)

	case Msg:
		return s.handle(msg)
	}

	var cmd tea.Cmd
	if s.mode == composing {
		if s.title.Focused() {
			s.title, cmd = s.title.Update(msg)
		} else {
			s.body, cmd = s.body.Update(msg)
		}
		return cmd
	}
	s.list, cmd = s.list.Update(msg)
	return cmd
}

func (s *journalSurface) handle(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgEntriesLoaded:
		data, _ := msg.data.(entriesLoaded)
		if data.err != nil {
			s.setError(fmt.Sprintf("Could not load entries: %v", data.err))
			return nil
		}
		return s.setEntries(data.entries)

	case MsgEntrySaved:
		data, _ := msg.data.(entrySaved)
		if data.err != nil {
			s.setError(fmt.Sprintf("Entry not %s: %v", data.verb, data.err))
			return nil
		}
		s.setStatus(fmt.Sprintf("Entry %s.", data.verb))
		return s.load()

	case MsgPromptReady:
		data, _ := msg.data.(promptReady)
		if data.err != nil {
			s.root.logger.Warn("prompt unavailable", "error", data.err)
			return nil
		}
		s.prompt = data.prompt

	case MsgSignOutDone:
		if err, _ := msg.data.(error); err != nil {
			s.setError(fmt.Sprintf("Could not sign out: %v", err))
		}
	}
	return nil
}

func (s *journalSurface) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	if s.list.SettingFilter() {
		var cmd tea.Cmd
		s.list, cmd = s.list.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, s.keys.quit):
		return tea.Quit
	case key.Matches(msg, s.keys.write):
		return s.compose()
	case key.Matches(msg, s.keys.seal):
		return s.sealSelected()
	case key.Matches(msg, s.keys.unseal):
		return s.unsealSelected()
	case key.Matches(msg, s.keys.refresh):
		return s.load()
	case key.Matches(msg, s.keys.signOut):
		s.setStatus("Signing out...")
		return s.signOut()
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return cmd
}

func (s *journalSurface) updateCompose(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, s.keys.cancel):
		s.mode = browsing
		s.title.Blur()
		s.body.Blur()
		return nil
	case key.Matches(msg, s.keys.save):
		return s.save()
	case key.Matches(msg, s.keys.prompt):
		return s.generatePrompt()
	case key.Matches(msg, s.keys.focus):
		if s.title.Focused() {
			s.title.Blur()
			return s.body.Focus()
		}
		s.body.Blur()
		return s.title.Focus()
	}

	var cmd tea.Cmd
	if s.title.Focused() {
		s.title, cmd = s.title.Update(msg)
	} else {
		s.body, cmd = s.body.Update(msg)
	}
	return cmd
}

func (s *journalSurface) setEntries(entries []*journal.Entry) tea.Cmd {
	s.entries = entries
	now := s.root.opts.Now()
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = newEntryItem(e, now)
	}
	return s.list.SetItems(items)
}

func (s *journalSurface) selected() (entryItem, bool) {
	item, ok := s.list.SelectedItem().(entryItem)
	return item, ok
}

func (s *journalSurface) setStatus(text string) {
	s.status, s.statusErr = text, false
}

func (s *journalSurface) setError(text string) {
	s.status, s.statusErr = text, true
}

// touchAccount records the signed-in profile. Failures only cost the "last seen" bookkeeping.
func (s *journalSurface) touchAccount() {
	accounts := s.root.opts.Accounts
	p := s.root.opts.Store.CurrentProfile()
	if accounts == nil || p == nil {
		return
	}
	err := accounts.Touch(journal.Account{
		Subject:     p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		LastSeenAt:  s.root.opts.Now().UTC(),
	})
	if err != nil {
		s.root.logger.Warn("failed to record account", "error", err)
	}
}

func (s *journalSurface) load() tea.Cmd {
	repo, user, id := s.root.opts.Entries, s.userID, s.id
	return func() tea.Msg {
		entries, err := repo.List(user, journal.ListOptions{})
		return entriesLoadedMsg(id, entries, err)
	}
}

func (s *journalSurface) compose() tea.Cmd {
	s.title.Reset()
	s.body.Reset()
	s.prompt = prompts.Prompt{}
	s.mode = composing
	s.body.Blur()
	return tea.Batch(s.title.Focus(), s.generatePrompt())
}

func (s *journalSurface) generatePrompt() tea.Cmd {
	gen := s.root.opts.Prompts
	if gen == nil {
		return nil
	}
	ctx, id := s.root.ctx, s.id
	return func() tea.Msg {
		p, err := gen.Generate(ctx, "")
		return promptReadyMsg(id, p, err)
	}
}

func (s *journalSurface) save() tea.Cmd {
	e := journal.NewEntry(s.userID, s.title.Value(), s.body.Value())
	e.Prompt = s.prompt.Text
	if err := e.Validate(); err != nil {
		s.setError(err.Error())
		return nil
	}

	s.mode = browsing
	s.title.Blur()
	s.body.Blur()

	repo, id := s.root.opts.Entries, s.id
	return func() tea.Msg {
		err := repo.Create(e)
		return entrySavedMsg(id, e, "saved", err)
	}
}

func (s *journalSurface) sealSelected() tea.Cmd {
	item, ok := s.selected()
	if !ok {
		return nil
	}
	repo, user, id := s.root.opts.Entries, s.userID, s.id
	now := s.root.opts.Now()
	until := now.Add(s.root.opts.SealFor)
	return func() tea.Msg {
		e, err := repo.Seal(user, item.entry.ID, until, now)
		return entrySavedMsg(id, e, "sealed", err)
	}
}

func (s *journalSurface) unsealSelected() tea.Cmd {
	item, ok := s.selected()
	if !ok {
		return nil
	}
	repo, user, id := s.root.opts.Entries, s.userID, s.id
	now := s.root.opts.Now()
	return func() tea.Msg {
		e, err := repo.Unseal(user, item.entry.ID, now)
		return entrySavedMsg(id, e, "unsealed", err)
	}
}

func (s *journalSurface) signOut() tea.Cmd {
	store, id := s.root.opts.Store, s.id
	return func() tea.Msg {
		return signOutDoneMsg(id, store.SignOut())
	}
}

func (s *journalSurface) View() string {
	name := s.name
	if name == "" {
		name = "you"
	}
	header := styles.title.Render("Capsule · " + name)

	var content string
	var keys []key.Binding
	if s.mode == composing {
		content = s.composeView()
		keys = []key.Binding{s.keys.focus, s.keys.prompt, s.keys.save, s.keys.cancel}
	} else {
		content = s.list.View()
		keys = []key.Binding{s.keys.write, s.keys.seal, s.keys.unseal, s.keys.refresh, s.keys.signOut, s.keys.quit}
	}

	status := ""
	if s.status != "" {
		if s.statusErr {
			status = styles.err.Render(s.status)
		} else {
			status = styles.ok.Render(s.status)
		}
	}

	return fmt.Sprintf("%s\n%s\n%s\n\n%s", header, content, status, s.help.ShortHelpView(keys))
}

func (s *journalSurface) composeView() string {
	prompt := styles.help.Render("Fetching a prompt...")
	switch {
	case s.root.opts.Prompts == nil:
		prompt = ""
	case s.prompt.Text != "":
		prompt = styles.help.Render("Prompt: " + s.prompt.Text)
	}
	return styles.frame.Render(fmt.Sprintf("%s\n\n%s\n\n%s", prompt, s.title.View(), s.body.View()))
}
