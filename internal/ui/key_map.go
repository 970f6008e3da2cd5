package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	signIn  key.Binding
	cancel  key.Binding
	write   key.Binding
	seal    key.Binding
	unseal  key.Binding
	refresh key.Binding
	signOut key.Binding
	prompt  key.Binding
	focus   key.Binding
	save    key.Binding
	reload  key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		signIn:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in")),
		cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		write:   key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write")),
		seal:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "seal capsule")),
		unseal:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unseal")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		signOut: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sign out")),
		prompt:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "new prompt")),
		focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		reload:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.signIn, k.cancel},
		{k.write, k.seal, k.unseal, k.refresh, k.signOut},
		{k.prompt, k.focus, k.save},
		{k.reload, k.quit},
	}
}
