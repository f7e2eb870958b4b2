package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perfgo/pagerunner/config"
	"github.com/perfgo/pagerunner/history"
	"github.com/perfgo/pagerunner/systrace"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "pagerunner"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	out    io.Writer
	config config.Config

	// replaces adb for systrace commands when set
	adb systrace.CommandRunner
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		out:    os.Stdout,
		config: config.Default(),
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Inspect page sets, summarize page run results and capture systraces",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"PAGERUNNER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "history-dir",
				Usage: "Directory runs are recorded in (default: .pagerunner at the git repository root)",
			},
		},
		Before: app.before,
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "pages",
		Usage:     "List the pages of a page set",
		ArgsUsage: "PAGESET",
		Action:    app.pages,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "use-live-sites",
				Usage: "Show pages as served from the network instead of replay archives",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "summarize",
		Usage:     "Print the summary of recorded page run results",
		ArgsUsage: "[ID|INDEX]",
		Action:    app.summarize,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (none, csv, html, buildbot, gtest), default from config",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the summary to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "results",
				Usage: "Read results from a snapshot file instead of history",
			},
		},
		Description: `Print the summary of recorded page run results.

Negative indexes must follow "--", e.g. pagerunner summarize -- -1`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous runs",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Filter by relative path",
			},
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Filter by run type (run, systrace)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View a run from history",
		ArgsUsage:       "[ID|INDEX]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View a run from history.

Arguments:
  0           View last run (default)
  -1          View 2nd last run
  -2          View 3rd last run
  <hex-id>    View run matching the ID prefix

Display Priority:
  1. Summary output
  2. Page runs from the results snapshot
  3. Systrace files (not displayed, only listed)`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "systrace",
		Usage: "Capture Android systrace data through adb",
		Subcommands: []*cli.Command{
			{
				Name:   "categories",
				Usage:  "List the trace categories supported by the device",
				Action: app.systraceCategories,
				Flags: []cli.Flag{
					deviceFlag(),
				},
			},
			{
				Name:   "record",
				Usage:  "Record a trace until interrupted or the duration passes",
				Action: app.systraceRecord,
				Flags: []cli.Flag{
					deviceFlag(),
					&cli.StringSliceFlag{
						Name:  "categories",
						Usage: "Trace categories, default from config",
					},
					&cli.BoolFlag{
						Name:  "ring-buffer",
						Usage: "Only pull the trace when recording stops",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "How often trace data is pulled from the device, default from config",
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Stop recording after this duration (default: until interrupted)",
					},
				},
			},
		},
	})
	return app
}

func (a *App) before(ctx *cli.Context) error {
	if ctx.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if path := ctx.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.config = cfg
		a.logger.Debug().Str("path", path).Msg("Loaded config")
	}
	if dir := ctx.String("history-dir"); dir != "" {
		a.config.HistoryDir = dir
	}
	return nil
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func (a *App) loadEntries() ([]history.Entry, error) {
	root, err := history.ResolveRoot(a.config.HistoryDir)
	if err != nil {
		return nil, err
	}
	entries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}
