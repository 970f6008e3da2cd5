package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/capsule/internal/lifecycle"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/desertthunder/capsule/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive journal.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/capsule-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.logger = fileLogger

	store, err := r.session()
	if err != nil {
		return err
	}
	flow, err := r.signInFlow()
	if err != nil {
		return err
	}
	entries, accounts, err := r.repositories()
	if err != nil {
		return err
	}
	gen, err := r.promptGenerator(ctx)
	if err != nil {
		return err
	}

	scope := lifecycle.NewScope(r.logger)
	defer scope.Clear()

	return ui.Run(ctx, r.loop, ui.Options{
		Store:    store,
		Flow:     flow,
		Entries:  entries,
		Accounts: accounts,
		Prompts:  gen,
		Scope:    scope,
		Logger:   r.logger,
		Metrics:  r.recorder,
		Now:      r.now,
	}, tea.WithAltScreen())
}
