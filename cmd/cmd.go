// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func sessionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "session",
		Aliases:  []string{"s"},
		Usage:    "Session id (see: sessions list)",
		Required: true,
	}
}

// serveCommand runs the authorization web service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the authorization server (/login, /callback, /refresh_token)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open /login in the default browser once listening",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles configuration and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write config.toml from the built-in template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "from-env",
						Usage: "Write the resolved settings, environment overrides included, instead of the template",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "key",
				Usage:  "Generate a store.encryption_key value",
				Action: r.SetupKey,
			},
		},
	}
}

// sessionsCommand inspects and manages stored sessions
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Inspect and manage stored sessions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sessions and whether they hold a refresh token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionsList,
			},
			{
				Name:  "delete",
				Usage: "Delete a session and its refresh token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.SessionsDelete,
			},
			{
				Name:  "refresh",
				Usage: "Exchange a session's refresh token for a new access token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionsRefresh,
			},
		},
	}
}

// apiCommand makes authenticated Web API calls on behalf of a session
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Authenticated Spotify Web API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a Web API path (e.g. /me/playlists), prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					sessionFlag(),
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// meCommand shows the profile of a session's user
func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "me",
		Usage: "Show the Spotify profile behind a session",
		Flags: []cli.Flag{
			sessionFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Me,
	}
}
