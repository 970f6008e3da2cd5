package main

import (
	"context"

	"github.com/desertthunder/capsule/internal/prompts"
	"github.com/urfave/cli/v3"
)

// Prompt prints a journaling prompt.
func (r *Runner) Prompt(ctx context.Context, cmd *cli.Command) error {
	gen, err := r.promptGenerator(ctx)
	if err != nil {
		return err
	}

	p, err := gen.Generate(ctx, cmd.String("topic"))
	if err != nil {
		return err
	}

	if p.Source == prompts.SourceFallback && gen.Configured() {
		r.logger.Warn("prompt service unavailable; using a built-in prompt", "error", p.Err)
	}
	return r.writePlain("%s\n", p.Text)
}
