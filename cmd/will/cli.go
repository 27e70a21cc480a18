package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/client"
	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/config"
	"github.com/hpungsan/will/internal/daemon"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/logging"
	"github.com/hpungsan/will/internal/mcp"
	"github.com/hpungsan/will/internal/settings"
	"github.com/hpungsan/will/internal/timers"
)

// env carries what the commands need. Fields are nil for --help and --version.
type env struct {
	db      *sql.DB
	cfg     *config.Config
	baseDir string
	client  *client.Client
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "will",
		Usage:   "Pomodoro timer and distraction tracker",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(e),
			statusCmd(e),
			pomodoroCmd(e, "start", "Start or resume the Pomodoro timer", (*client.Client).StartPomodoro),
			pomodoroCmd(e, "stop", "Pause the Pomodoro timer", (*client.Client).StopPomodoro),
			pomodoroCmd(e, "reset", "Reset the Pomodoro timer to a fresh focus phase", (*client.Client).ResetPomodoro),
			trackingCmd(e),
			timersCmd(e),
			alarmsCmd(e),
			grantCmd(e),
			focusCmd(e),
			classifyCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd runs the daemon in the foreground.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the daemon: control API, browser connection and timers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging"},
			&cli.BoolFlag{Name: "headless", Usage: "Launch the browser without a window"},
			&cli.StringFlag{Name: "debugger-url", Usage: "Attach to a running browser's DevTools websocket"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Merge(e.cfg, &config.Config{
				Verbose:     c.Bool("verbose"),
				Headless:    c.Bool("headless"),
				DebuggerURL: c.String("debugger-url"),
			})

			log, err := logging.New(e.baseDir, cfg.Verbose)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer func() { _ = log.Sync() }()

			d, err := daemon.New(cfg, e.db, log)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Run(ctx); err != nil {
				log.Error("daemon stopped", zap.Error(err))
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the daemon status",
		Action: func(c *cli.Context) error {
			return run(e.client.Status(c.Context))
		},
	}
}

// pomodoroCmd creates one of the start/stop/reset commands.
func pomodoroCmd[T any](e *env, name, usage string, call func(*client.Client, context.Context) (T, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			return run(call(e.client, c.Context))
		},
	}
}

// trackingCmd shows or sets the distraction-tracking toggle.
func trackingCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "tracking",
		Usage:     "Show or set distraction tracking",
		ArgsUsage: "[on|off]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return run(e.client.Tracking(c.Context))
			}
			enabled, err := parseSwitch(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return run(e.client.SetTracking(c.Context, enabled))
		},
	}
}

// timersCmd lists site timers.
func timersCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "timers",
		Usage: "List time spent on distracting sites",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "offline", Usage: "Read the last flushed timers from the database instead of the daemon"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("offline") {
				return run(offlineTimers(c.Context, e.db))
			}
			return run(e.client.Timers(c.Context))
		},
	}
}

// alarmsCmd lists pending reminders.
func alarmsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "alarms",
		Usage: "List pending reminders",
		Action: func(c *cli.Context) error {
			return run(e.client.Alarms(c.Context))
		},
	}
}

// grantCmd unblocks one URL for a few minutes.
func grantCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "grant",
		Usage:     "Allow exactly one URL for a few minutes during focus",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			url := strings.TrimSpace(c.Args().First())
			if url == "" {
				return outputError(errors.NewInvalidRequest("url is required"))
			}
			return run(e.client.Grant(c.Context, url))
		},
	}
}

// focusCmd brings a productive tab to the front.
func focusCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "focus",
		Usage: "Switch to the most recent productive tab",
		Action: func(c *cli.Context) error {
			return run(e.client.BackToFocus(c.Context))
		},
	}
}

// classifyCmd classifies a URL against the configured lists. It does not
// need the daemon.
func classifyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Show whether a URL is distracting or productive",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			url := strings.TrimSpace(c.Args().First())
			if url == "" {
				return outputError(errors.NewInvalidRequest("url is required"))
			}
			classifier, err := domains.Load(e.cfg.DomainsFile)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(classifier.Classify(url))
		},
	}
}

// mcpCmd serves the MCP tools over stdio.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio (the daemon must be running)",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
				fmt.Fprintf(os.Stderr, "warning: unknown disabled_tools: %s\n", strings.Join(unknown, ", "))
			}
			if err := mcp.Run(e.client, e.cfg, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// offlineTimers reads the persisted site timers without a daemon.
func offlineTimers(ctx context.Context, database *sql.DB) (api.Timers, error) {
	store := timers.New(settings.New(db.NewKV(database)), clock.Real{}, 0, zap.NewNop())
	if err := store.Hydrate(ctx); err != nil {
		return api.Timers{}, errors.NewInternal(err)
	}
	return api.Timers{Timers: api.SiteTimers(store.Snapshot())}, nil
}

// parseSwitch parses on/off style arguments.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, errors.NewInvalidRequest(fmt.Sprintf("expected on or off, got %q", s))
}

// run prints v or the error from a client call.
func run[T any](v T, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(v)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if wErr, ok := err.(*errors.WillError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, wErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
