package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/capsule/internal/formatter"
	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/urfave/cli/v3"
)

// JournalWrite stores a new entry, optionally with a generated prompt and an immediate seal.
func (r *Runner) JournalWrite(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	body := cmd.String("body")
	if body == "" && !cmd.IsSet("body") {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read body from stdin: %w", err)
		}
		body = strings.TrimSpace(string(data))
	}

	e := journal.NewEntry(profile.ID, cmd.String("title"), body)
	e.Mood = cmd.String("mood")

	if cmd.Bool("prompt") {
		gen, err := r.promptGenerator(ctx)
		if err != nil {
			return err
		}
		p, err := gen.Generate(ctx, e.Mood)
		if err != nil {
			return err
		}
		e.Prompt = p.Text
	}

	if days := cmd.Int("seal-days"); days > 0 {
		now := r.now()
		if err := e.Seal(now.AddDate(0, 0, int(days)), now); err != nil {
			return err
		}
	}

	if err := repo.Create(e); err != nil {
		return err
	}

	r.writePlain("✓ Entry saved: %s\n", e.ID)
	if e.Prompt != "" {
		r.writePlain("Prompt: %s\n", e.Prompt)
	}
	if e.IsCapsule() {
		r.writePlain("Sealed until %s\n", e.SealedUntil.Format(time.DateOnly))
	}
	return nil
}

// JournalList prints the signed-in user's entries. Sealed bodies stay hidden.
func (r *Runner) JournalList(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	entries, err := repo.List(profile.ID, journal.ListOptions{
		CapsulesOnly: cmd.Bool("capsules"),
		Limit:        int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	now := r.now()
	if cmd.Bool("json") {
		visible := make([]journal.Entry, len(entries))
		for i, e := range entries {
			visible[i] = e.Visible(now)
		}
		return r.writeJSON(visible, cmd.Bool("pretty"))
	}

	if len(entries) == 0 {
		return r.writePlain("No entries yet. Try 'capsule journal write'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Journal of %s (%d entries)", profile.Name(), len(entries)))
	for _, e := range entries {
		marker := " "
		if e.IsSealed(now) {
			marker = "🔒"
		}
		r.writePlain("%s %s  %s  %s\n", marker, e.CreatedAt.Local().Format(time.DateOnly), e.ID[:8], e.Summary(50))
	}
	return nil
}

// JournalShow prints one entry.
func (r *Runner) JournalShow(ctx context.Context, cmd *cli.Command) error {
	e, err := r.entryArg(cmd)
	if err != nil {
		return err
	}

	v := e.Visible(r.now())
	r.writePlainHeader(v.Summary(60))
	r.writePlain("ID:      %s\n", v.ID)
	r.writePlain("Written: %s\n", v.CreatedAt.Local().Format("2006-01-02 15:04"))
	if v.Mood != "" {
		r.writePlain("Mood:    %s\n", v.Mood)
	}
	if v.Prompt != "" {
		r.writePlain("Prompt:  %s\n", v.Prompt)
	}
	if v.SealedUntil != nil {
		r.writePlain("Capsule: opens %s\n", v.SealedUntil.Format(time.DateOnly))
	}
	return r.writePlainln("%s", v.Body)
}

// JournalSeal turns an entry into a time capsule.
func (r *Runner) JournalSeal(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	now := r.now()
	until := now.AddDate(0, 0, int(cmd.Int("days")))
	if s := cmd.String("until"); s != "" {
		until, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return fmt.Errorf("%w: --until must be YYYY-MM-DD", shared.ErrInvalidArgument)
		}
	}

	e, err := repo.Seal(profile.ID, id, until, now)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Sealed until %s\n", e.SealedUntil.Format(time.DateOnly))
}

// JournalUnseal opens a capsule whose date has passed.
func (r *Runner) JournalUnseal(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	e, err := repo.Unseal(profile.ID, id, r.now())
	if err != nil {
		return err
	}
	r.writePlain("✓ Capsule opened\n")
	return r.writePlainln("%s", e.Body)
}

// JournalDelete removes an entry.
func (r *Runner) JournalDelete(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if err := repo.Delete(profile.ID, id, r.now()); err != nil {
		return err
	}
	return r.writePlain("✓ Entry deleted\n")
}

// JournalExport writes every entry to a file in the chosen format.
func (r *Runner) JournalExport(ctx context.Context, cmd *cli.Command) error {
	profile, err := r.profile()
	if err != nil {
		return err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	entries, err := repo.List(profile.ID, journal.ListOptions{})
	if err != nil {
		return err
	}

	export := formatter.NewExport(profile.ID, entries, r.now())
	path, err := formatter.WriteExport(export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("journal exported", "format", format, "entries", len(entries), "path", path)
	return r.writePlain("✓ Exported %d entries to %s\n", len(entries), path)
}

func (r *Runner) entryArg(cmd *cli.Command) (*journal.Entry, error) {
	profile, err := r.profile()
	if err != nil {
		return nil, err
	}
	repo, _, err := r.repositories()
	if err != nil {
		return nil, err
	}

	id, err := requireArg(cmd, "id")
	if err != nil {
		return nil, err
	}
	return repo.Get(profile.ID, id)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}
