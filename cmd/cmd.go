// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the database",
		Action: r.Setup,
	}
}

// authCommand handles the Spotify login kept in the preference store
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in through the bootstrap endpoint and store the access token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "token",
						Usage: "Store this access token instead of opening the browser",
					},
					&cli.StringFlag{
						Name:  "login-base",
						Usage: "Bootstrap endpoint origin (default: the local server)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check the stored access token against Spotify",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored access token",
				Action: r.AuthLogout,
			},
		},
	}
}

// serveCommand runs the OAuth bootstrap and relay endpoints
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the OAuth bootstrap endpoint (/api/login, /api/callback, /api/play, /api/devices)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// devicesCommand lists Spotify Connect devices
func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List Spotify Connect devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Devices,
	}
}

// catalogCommand handles catalog inspection and card export
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect the track catalog",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog entries in card order",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CatalogList,
			},
			{
				Name:  "resolve",
				Usage: "Resolve a card number, code, URI or share link to a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "input"},
				},
				Action: r.CatalogResolve,
			},
			{
				Name:  "export",
				Usage: "Export printable cards as csv, md or text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, md or text",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Deck title",
						Value: "Hitster cards",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (default: derived from the title)",
					},
					&cli.StringFlag{
						Name:  "base-url",
						Usage: "Link base for the QR codes (default: server.public_url)",
					},
					&cli.BoolFlag{
						Name:  "stdout",
						Usage: "Print instead of writing a file",
					},
				},
				Action: r.CatalogExport,
			},
		},
	}
}

// historyCommand lists recorded plays
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently started tracks",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of plays to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "uri",
				Usage: "Only show plays of this track",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

func playbackFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "full",
			Usage: "Play the full track instead of a timed preview",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Access token to use for this run (stored for later runs)",
		},
	}
}

// playCommand plays one card
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a card by number, code, URI or share link",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "input"},
		},
		Flags:  playbackFlags(),
		Action: r.Play,
	}
}

// openCommand opens a game link as if it were the page URL
func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "open",
		Usage: "Open a game link (?t=, ?id=, ?token=, ?scan=1)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags:  playbackFlags(),
		Action: r.Open,
	}
}

// scanCommand watches the frames directory for QR codes
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan a QR code from the frames directory and play it",
		Flags: append(playbackFlags(), &cli.StringFlag{
			Name:  "frames",
			Usage: "Directory to read camera frames from (default: scanner.frames_dir)",
		}),
		Action: r.Scan,
	}
}

// tuiCommand returns the top-level TUI command for the game screen.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"game", "ui"},
		Usage:   "Launch the interactive game screen",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Start from a game link (?t=, ?id=, ?scan=1)",
			},
			&cli.StringFlag{
				Name:  "frames",
				Usage: "Directory to read camera frames from (default: scanner.frames_dir)",
			},
		},
		Action: r.TUI,
	}
}
