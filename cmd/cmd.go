// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/song-migrations/internal/formatter"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/urfave/cli/v3"
)

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID",
		Required: true,
	}
}

func serviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "service",
		Aliases: []string{"s"},
		Usage:   "Service to operate on (spotify or ytmusic)",
		Value:   models.ServiceSpotify,
	}
}

func formatFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (json, csv, markdown, text)",
		Value:   value,
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Spotify playlist ID (repeatable)",
		Required: true,
	}
}

func idFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Usage:    "Transfer ID",
		Required: true,
	}
}

// setupCommand handles setup operations for the database, config file and users.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write config.toml from the embedded template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to write",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "user",
				Usage: "Create a user that tokens and transfers belong to",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "User email",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
				},
				Action: r.SetupUser,
			},
		},
	}
}

// authCommand handles per-service login state
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage service authentication",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Check whether a user holds a valid token",
				Flags:  []cli.Flag{userFlag(), serviceFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:  "login",
				Usage: "Log a user in (browser redirect for Spotify, device code for YouTube Music)",
				Flags: []cli.Flag{
					userFlag(),
					serviceFlag(),
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the authorization URL in the default browser",
						Value: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "callback",
				Usage: "Complete a Spotify login with an authorization code",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "code",
						Usage:    "Authorization code from the redirect",
						Required: true,
					},
				},
				Action: r.AuthCallback,
			},
			{
				Name:  "token",
				Usage: "Issue an API bearer token for a user",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: defaultTokenTTL,
					},
				},
				Action: r.AuthToken,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List a user's Spotify playlists",
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 50,
					},
					formatFlag("text"),
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
		},
	}
}

// transferCommand handles playlist transfer operations
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer playlists from Spotify to YouTube Music",
		Commands: []*cli.Command{
			{
				Name:   "start",
				Usage:  "Dispatch a transfer job onto the configured bus",
				Flags:  []cli.Flag{userFlag(), playlistFlag()},
				Action: r.TransferStart,
			},
			{
				Name:   "run",
				Usage:  "Dispatch and execute a transfer in this process, streaming progress",
				Flags:  []cli.Flag{userFlag(), playlistFlag()},
				Action: r.TransferRun,
			},
			{
				Name:   "status",
				Usage:  "Show a transfer record",
				Flags:  []cli.Flag{idFlag(), formatFlag(formatter.FormatText)},
				Action: r.TransferStatus,
			},
			{
				Name:  "report",
				Usage: "Write a transfer report to a file or S3",
				Flags: []cli.Flag{
					idFlag(),
					formatFlag(formatter.FormatMarkdown),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: transfer_<id>.<ext>)",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Upload to the configured reports bucket instead of writing a file",
					},
				},
				Action: r.TransferReport,
			},
			{
				Name:  "list",
				Usage: "List a user's transfers, newest first",
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of transfers",
						Value: 20,
					},
				},
				Action: r.TransferList,
			},
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "worker",
				Usage: "Also consume transfer jobs in this process",
				Value: true,
			},
		},
		Action: r.Serve,
	}
}

// workerCommand consumes transfer jobs
func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Consume transfer jobs from the configured bus",
		Action: r.Worker,
	}
}
