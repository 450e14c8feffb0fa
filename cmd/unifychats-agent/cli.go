package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/akshtjain/unifychatsmono/internal/agentstate"
	"github.com/akshtjain/unifychatsmono/internal/bridge"
	"github.com/akshtjain/unifychatsmono/internal/collector"
	"github.com/akshtjain/unifychatsmono/internal/scheduler"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "unifychats-agent",
		Usage:   "Push local AI conversation transcripts to a UnifyChats backend",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state-dir", Value: "~/.unifychats", Usage: "Directory for agent state"},
			&cli.StringFlag{Name: "transcript", Aliases: []string{"f"}, Usage: "Path to the transcript JSON file"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log at debug level"},
		},
		Commands: []*cli.Command{
			runCmd(),
			syncCmd(),
			loginCmd(),
			logoutCmd(),
			statusCmd(),
			autosyncCmd(),
			bookmarkCmd(),
			bookmarksCmd(),
		},
	}
	// Disable default exit error handler so tests see returned errors.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withExecutor opens agent state, runs the background executor for the
// duration of fn, and drains any queued beacons before stopping it.
func withExecutor(c *cli.Context, fn func(ctx context.Context, b *bridge.Bridge, state *agentstate.Store) error) error {
	state, err := agentstate.Open(c.String("state-dir"))
	if err != nil {
		return fmt.Errorf("open agent state: %w", err)
	}
	defer state.Close()

	b := bridge.New()
	exec := bridge.NewExecutor(b, state, newLogger(c))
	execCtx, stopExec := context.WithCancel(context.Background())
	execDone := make(chan struct{})
	go func() {
		exec.Run(execCtx)
		close(execDone)
	}()
	defer func() {
		stopExec()
		<-execDone
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, b, state); err != nil {
		return err
	}

	// The executor processes its queue in order, so one round trip
	// guarantees any fire-and-forget beacon ahead of it was delivered.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.Send(drainCtx, bridge.Request{Type: bridge.TypeGetAuthStatus})
	return nil
}

func transcriptCollector(c *cli.Context) (*collector.FileCollector, string, error) {
	path := c.String("transcript")
	if path == "" {
		return nil, "", errors.New("--transcript is required")
	}
	return collector.NewFileCollector(path), path, nil
}

func friendlyAuthHint(err error) error {
	if errors.Is(err, bridge.ErrNotAuthenticated) {
		return errors.New("not signed in - run 'unifychats-agent login --token <token> --backend <url>' first")
	}
	return err
}

// runCmd watches the transcript file and lets the scheduler decide when to
// push. This is the long-running mode.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Watch the transcript file and auto-sync on changes",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "debounce", Value: 5 * time.Second, Usage: "Quiet window after activity before pushing"},
			&cli.DurationFlag{Name: "interval", Value: 5 * time.Minute, Usage: "Periodic re-check interval"},
			&cli.DurationFlag{Name: "min-push-interval", Value: 30 * time.Second, Usage: "Minimum time between pushes"},
		},
		Action: func(c *cli.Context) error {
			col, path, err := transcriptCollector(c)
			if err != nil {
				return err
			}
			logger := newLogger(c)

			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, state *agentstate.Store) error {
				enabled, err := state.AutoSync()
				if err != nil {
					return fmt.Errorf("read auto-sync setting: %w", err)
				}
				if !enabled {
					logger.Warn("auto-sync is off; run 'unifychats-agent autosync on' to enable pushes")
				}

				watcher, err := collector.NewWatcher(path, logger)
				if err != nil {
					return fmt.Errorf("watch transcript: %w", err)
				}

				cfg := scheduler.Config{
					ActivityDebounce: c.Duration("debounce"),
					PeriodicInterval: c.Duration("interval"),
					MinPushInterval:  c.Duration("min-push-interval"),
				}
				sched := scheduler.New(cfg, bridge.NewTransport(b, 30*time.Second), col, enabled, logger)

				logger.Info("agent running", "transcript", path, "auto_sync", enabled)
				go watcher.Run(ctx)
				sched.Run(ctx, watcher.Events())
				return nil
			})
		},
	}
}

// syncCmd is the manual one-shot push.
func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push the transcript once, right now",
		Action: func(c *cli.Context) error {
			col, _, err := transcriptCollector(c)
			if err != nil {
				return err
			}
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, _ *agentstate.Store) error {
				snap, err := col.Collect(ctx)
				if err != nil {
					return err
				}
				resp, err := b.Send(ctx, bridge.Request{Type: bridge.TypeSyncConversation, Snapshot: snap})
				if err != nil {
					return friendlyAuthHint(err)
				}
				fmt.Printf("Synced %d messages (conversation %s)\n", len(snap.Messages), resp.ConversationID)
				return nil
			})
		},
	}
}

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Store the backend credential",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Required: true, Usage: "Bearer token issued by the backend"},
			&cli.StringFlag{Name: "backend", Value: "http://localhost:8760", Usage: "Backend base URL"},
		},
		Action: func(c *cli.Context) error {
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, _ *agentstate.Store) error {
				_, err := b.Send(ctx, bridge.Request{
					Type:       bridge.TypeSetAuthToken,
					Token:      c.String("token"),
					BackendURL: c.String("backend"),
				})
				if err != nil {
					return err
				}
				fmt.Printf("Signed in against %s\n", c.String("backend"))
				return nil
			})
		},
	}
}

func logoutCmd() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored credential",
		Action: func(c *cli.Context) error {
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, _ *agentstate.Store) error {
				if _, err := b.Send(ctx, bridge.Request{Type: bridge.TypeLogout}); err != nil {
					return err
				}
				fmt.Println("Signed out")
				return nil
			})
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show sign-in state and settings",
		Action: func(c *cli.Context) error {
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, state *agentstate.Store) error {
				resp, err := b.Send(ctx, bridge.Request{Type: bridge.TypeGetAuthStatus})
				if err != nil {
					return err
				}
				_, backendURL, err := state.Credentials()
				if err != nil {
					return err
				}
				autoSync, err := state.AutoSync()
				if err != nil {
					return err
				}
				if resp.Authenticated {
					fmt.Printf("Signed in (backend %s)\n", backendURL)
				} else {
					fmt.Println("Not signed in")
				}
				fmt.Printf("Auto-sync: %s\n", onOff(autoSync))
				return nil
			})
		},
	}
}

func autosyncCmd() *cli.Command {
	return &cli.Command{
		Name:      "autosync",
		Usage:     "Turn automatic syncing on or off",
		ArgsUsage: "on|off",
		Action: func(c *cli.Context) error {
			var enabled bool
			switch c.Args().First() {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return errors.New("expected 'on' or 'off'")
			}
			state, err := agentstate.Open(c.String("state-dir"))
			if err != nil {
				return fmt.Errorf("open agent state: %w", err)
			}
			defer state.Close()
			if err := state.SetAutoSync(enabled); err != nil {
				return err
			}
			fmt.Printf("Auto-sync: %s\n", onOff(enabled))
			return nil
		},
	}
}

func bookmarkCmd() *cli.Command {
	return &cli.Command{
		Name:  "bookmark",
		Usage: "Toggle a bookmark on a message of the current conversation",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "position", Aliases: []string{"p"}, Required: true, Usage: "0-based message position"},
		},
		Action: func(c *cli.Context) error {
			col, _, err := transcriptCollector(c)
			if err != nil {
				return err
			}
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, _ *agentstate.Store) error {
				snap, err := col.Collect(ctx)
				if err != nil {
					return err
				}
				resp, err := b.Send(ctx, bridge.Request{
					Type:       bridge.TypeToggleBookmark,
					Provider:   snap.Provider,
					ExternalID: snap.ExternalID,
					Position:   c.Int("position"),
				})
				if err != nil {
					return friendlyAuthHint(err)
				}
				if resp.Bookmarked {
					fmt.Printf("Bookmarked message %d\n", c.Int("position"))
				} else {
					fmt.Printf("Removed bookmark on message %d\n", c.Int("position"))
				}
				return nil
			})
		},
	}
}

func bookmarksCmd() *cli.Command {
	return &cli.Command{
		Name:  "bookmarks",
		Usage: "List bookmarked positions of the current conversation",
		Action: func(c *cli.Context) error {
			col, _, err := transcriptCollector(c)
			if err != nil {
				return err
			}
			return withExecutor(c, func(ctx context.Context, b *bridge.Bridge, _ *agentstate.Store) error {
				snap, err := col.Collect(ctx)
				if err != nil {
					return err
				}
				resp, err := b.Send(ctx, bridge.Request{
					Type:       bridge.TypeGetBookmarkStatus,
					Provider:   snap.Provider,
					ExternalID: snap.ExternalID,
				})
				if err != nil {
					return friendlyAuthHint(err)
				}
				if len(resp.Positions) == 0 {
					fmt.Println("No bookmarks")
					return nil
				}
				for _, pos := range resp.Positions {
					line := ""
					if pos < len(snap.Messages) {
						line = fmt.Sprintf("  [%s] %s", snap.Messages[pos].Role, preview(snap.Messages[pos].Content))
					}
					fmt.Printf("%d%s\n", pos, line)
				}
				return nil
			})
		},
	}
}

func preview(content string) string {
	const max = 60
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
