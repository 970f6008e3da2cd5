package main

import (
	"context"
	"os"

	"github.com/desertthunder/capsule/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	config := r.cfg()
	if cmd.Bool("rollback") {
		return r.rollback(config.Database.Path)
	}
	r.logger.Info("initializing database", "path", config.Database.Path)

	if _, err := r.database(); err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Database: %s\n", config.Database.Path)
	if err := config.Credentials.Google.Validate(); err != nil {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.google.client_id in %s\n", configPath)
		r.writePlain("2. Run 'capsule auth login'\n")
	}
	return nil
}

func (r *Runner) rollback(path string) error {
	db, err := r.database()
	if err != nil {
		return err
	}
	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", path)
	return r.writePlain("✓ Rolled back the latest migration\n")
}
