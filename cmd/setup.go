package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase runs (or rolls back) migrations against the configured database.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(ctx, db); err != nil {
			return err
		}
	} else {
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(ctx, db); err != nil {
			return err
		}
	}

	version, err := shared.MigrationVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	return r.writePlain("✓ Database %s at migration version %d\n", path, version)
}

// SetupConfig writes the embedded config template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Config written to %s\n", path)
}

// SetupUser creates a user and prints its generated id.
func (r *Runner) SetupUser(ctx context.Context, cmd *cli.Command) error {
	if r.users == nil {
		return fmt.Errorf("%w: user store not initialized", shared.ErrServiceUnavailable)
	}

	user := models.NewUser(cmd.String("email"), cmd.String("name"))
	if err := r.users.Create(ctx, user); err != nil {
		return err
	}

	r.logger.Info("user created", "user_id", user.ID())
	return r.writePlain("✓ Created user %s\n", user.ID())
}
