// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The root [Model] hosts exactly one live surface at a time:
//  1. the sign-in surface: start a Google sign-in and wait for the browser round trip
//  2. the journal surface: browse entries, write new ones from a prompt, seal time capsules, sign out
//
// Each surface is guarded by a [navigation.Coordinator] observing a [session.View]. Both are kept in a
// [lifecycle.Scope] under the surface's key, so a rebuilt surface instance reuses them. Session deliveries reach the
// model through the main loop sink installed by [Run], which makes every delivery an ordinary message handled inside
// Update.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
