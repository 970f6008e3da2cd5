package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/session"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/urfave/cli/v3"
)

// sessionStatus is the JSON shape of 'auth status'.
type sessionStatus struct {
	State       string `json:"state"`
	Subject     string `json:"subject,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// AuthLogin runs an interactive Google sign-in and waits for the session to reflect it.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("no-browser") {
		r.openBrowser = func(string) error { return nil }
	}

	store, err := r.session()
	if err != nil {
		return err
	}
	if p := store.CurrentProfile(); p != nil {
		return r.writePlain("Already signed in as %s\n", p.Name())
	}

	flow, err := r.signInFlow()
	if err != nil {
		return err
	}

	h, err := flow.BeginSignIn(ctx)
	if err != nil {
		result := flow.Failed(err)
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, result.ErrorKind.Message())
	}

	r.writePlain("Complete sign-in in your browser. If it did not open, visit:\n\n  %s\n\n", h.AuthURL())

	result := flow.CompleteSignIn(ctx, h.Await(ctx))
	if !result.Success {
		r.logger.Debug("sign-in failed", "kind", result.ErrorKind, "detail", result.ErrorDetail)
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, result.ErrorKind.Message())
	}

	state, err := waitForState(ctx, store, session.Authenticated)
	if err != nil {
		return err
	}

	p := state.Profile()
	if _, accounts, err := r.repositories(); err != nil {
		r.logger.Warn("could not open database to record account", "error", err)
	} else if err := accounts.Touch(journal.Account{
		Subject:     p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		LastSeenAt:  r.now().UTC(),
	}); err != nil {
		r.logger.Warn("failed to record account", "error", err)
	}

	return r.writePlain("✓ Signed in as %s\n", p.Name())
}

// AuthLogout signs out and waits for the session to end.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.session()
	if err != nil {
		return err
	}
	if store.CurrentState().Is(session.Unauthenticated) {
		return r.writePlain("Not signed in\n")
	}

	if err := store.SignOut(); err != nil {
		return err
	}
	if _, err := waitForState(ctx, store, session.Unauthenticated); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus prints the current session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	store, err := r.session()
	if err != nil {
		return err
	}

	state := store.CurrentState()
	status := sessionStatus{State: state.Kind().String()}
	if p := state.Profile(); p != nil {
		status.Subject = p.ID
		status.Email = p.Email
		status.DisplayName = p.DisplayName
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	switch state.Kind() {
	case session.Authenticated:
		r.writePlain("✓ Signed in\n")
		r.writePlain("Name:  %s\n", state.Profile().Name())
		r.writePlain("Email: %s\n", status.Email)
		if _, accounts, err := r.repositories(); err == nil {
			if a, err := accounts.Get(status.Subject); err == nil {
				r.writePlain("Last seen: %s\n", a.LastSeenAt.Local().Format("2006-01-02 15:04"))
			}
		}
	case session.Unauthenticated:
		r.writePlain("✗ Not signed in\n")
	default:
		r.writePlain("… Session is still loading\n")
	}
	return nil
}
