package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/prompts"
	"github.com/desertthunder/capsule/internal/signin"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// A non-empty surface addresses the message to one surface instance. The root model discards it when that instance is
// no longer live.
type Msg struct {
	kind    MsgKind
	surface string
	data    any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLoopWork MsgKind = iota
	MsgSignInStarted
	MsgSignInResult
	MsgEntriesLoaded
	MsgEntrySaved
	MsgPromptReady
	MsgSignOutDone
)

type entriesLoaded struct {
	entries []*journal.Entry
	err     error
}

type entrySaved struct {
	entry *journal.Entry
	verb  string
	err   error
}

type promptReady struct {
	prompt prompts.Prompt
	err    error
}

// loopWorkMsg is the constructor for [MsgLoopWork]
func loopWorkMsg(fn func()) Msg {
	return Msg{kind: MsgLoopWork, data: fn}
}

// signInStartedMsg is the constructor for [MsgSignInStarted]
func signInStartedMsg(surface string, h *signin.Handle) Msg {
	return Msg{kind: MsgSignInStarted, surface: surface, data: h}
}

// signInResultMsg is the constructor for [MsgSignInResult]
func signInResultMsg(surface string, result signin.Result) Msg {
	return Msg{kind: MsgSignInResult, surface: surface, data: result}
}

// entriesLoadedMsg is the constructor for [MsgEntriesLoaded]
func entriesLoadedMsg(surface string, entries []*journal.Entry, err error) Msg {
	return Msg{kind: MsgEntriesLoaded, surface: surface, data: entriesLoaded{entries, err}}
}

// entrySavedMsg is the constructor for [MsgEntrySaved]
func entrySavedMsg(surface string, entry *journal.Entry, verb string, err error) Msg {
	return Msg{kind: MsgEntrySaved, surface: surface, data: entrySaved{entry, verb, err}}
}

// promptReadyMsg is the constructor for [MsgPromptReady]
func promptReadyMsg(surface string, p prompts.Prompt, err error) Msg {
	return Msg{kind: MsgPromptReady, surface: surface, data: promptReady{p, err}}
}

// signOutDoneMsg is the constructor for [MsgSignOutDone]
func signOutDoneMsg(surface string, err error) Msg {
	return Msg{kind: MsgSignOutDone, surface: surface, data: err}
}
