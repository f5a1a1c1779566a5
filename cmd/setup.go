package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes config.toml from the embedded template, or from the resolved
// settings (file, .env and environment) with --from-env.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if cmd.Bool("from-env") {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s", configPath)
		}
		if err := shared.SaveConfig(configPath, r.config); err != nil {
			return err
		}
		r.logger.Info("config file written from environment", "path", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
	}

	r.writePlain("%s %s\n", r.palette.OK("✓ Config written to"), configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Register %s as a redirect URI in the Spotify dashboard\n", r.config.Credentials.Spotify.RedirectURI)
	r.writePlain("3. Run 'spotauth serve --open'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations, or undoes the latest one with --rollback.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, using current settings", "path", configPath)
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		r.writePlain("%s %s\n", r.palette.OK("✓ Rolled back latest migration:"), config.Database.Path)
		return nil
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("%s %s\n", r.palette.OK("✓ Database ready:"), config.Database.Path)
	return nil
}

// SetupKey prints a fresh base64 encryption key for sealing stored refresh tokens.
func (r *Runner) SetupKey(ctx context.Context, cmd *cli.Command) error {
	key, err := shared.NewKey()
	if err != nil {
		return err
	}
	r.writePlain("%s\n", key)
	r.writePlain("%s\n", r.palette.Help("Set it as store.encryption_key or SPOTAUTH_ENCRYPTION_KEY. Losing it invalidates stored sessions."))
	return nil
}
