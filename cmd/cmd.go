// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/capsule/internal/journal"
	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, then initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Google sign-in",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Google in your browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the sign-in URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and forget the cached credential",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

func journalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "journal",
		Aliases: []string{"j"},
		Usage:   "Journal entries and time capsules",
		Commands: []*cli.Command{
			{
				Name:  "write",
				Usage: "Write a new entry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Entry title",
					},
					&cli.StringFlag{
						Name:    "body",
						Aliases: []string{"b"},
						Usage:   "Entry body (read from stdin when omitted)",
					},
					&cli.StringFlag{
						Name:  "mood",
						Usage: "One of " + strings.Join(journal.Moods, ", ") + " (any text is accepted)",
					},
					&cli.BoolFlag{
						Name:  "prompt",
						Usage: "Attach a generated journaling prompt",
					},
					&cli.IntFlag{
						Name:  "seal-days",
						Usage: "Seal the entry as a time capsule for this many days",
					},
				},
				Action: r.JournalWrite,
			},
			{
				Name:  "list",
				Usage: "List entries, newest first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "capsules",
						Usage: "Only list time capsules",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.JournalList,
			},
			{
				Name:      "show",
				Usage:     "Show one entry",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JournalShow,
			},
			{
				Name:      "seal",
				Usage:     "Seal an entry until a future date",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Days until the capsule opens",
						Value: 30,
					},
					&cli.StringFlag{
						Name:  "until",
						Usage: "Opening date (YYYY-MM-DD), overrides --days",
					},
				},
				Action: r.JournalSeal,
			},
			{
				Name:      "unseal",
				Usage:     "Open a capsule whose date has passed",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JournalUnseal,
			},
			{
				Name:      "delete",
				Usage:     "Delete an entry (sealed capsules cannot be deleted)",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.JournalDelete,
			},
			{
				Name:  "export",
				Usage: "Export entries to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, markdown, text, json or yaml",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default journal_YYYYMMDD.<ext>)",
					},
				},
				Action: r.JournalExport,
			},
		},
	}
}

func promptCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Suggest a journaling prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "topic",
				Usage: "Steer the prompt toward a topic or mood",
			},
		},
		Action: r.Prompt,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Open the interactive journal",
		Action: r.TUI,
	}
}
