package main

import (
	"context"
	"os"

	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config, err := shared.ResolveConfig("config.toml", ".env")
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	var spotifyService *services.SpotifyService
	if config.Credentials.Spotify.Validate() == nil {
		if svc, err := services.NewSpotifyService(
			config.Credentials.Spotify.Map(),
			services.WithHTTPClient(newHTTPClient(config)),
		); err == nil {
			spotifyService = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotifyService,
		Logger:  logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "spotauth",
		Usage:    "Spotify authorization service with per-session refresh tokens",
		Version:  "0.1.0",
		Flags:    []cli.Flag{&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"}},
		Before:   runner.before,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
