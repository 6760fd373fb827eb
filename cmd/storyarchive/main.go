// Package main provides the storyarchive CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
	"github.com/gauthierbraillon/storyarchive/internal/config"
	"github.com/gauthierbraillon/storyarchive/internal/display"
	"github.com/gauthierbraillon/storyarchive/internal/history"
	"github.com/gauthierbraillon/storyarchive/internal/instagram"
	"github.com/gauthierbraillon/storyarchive/internal/logging"
	"github.com/gauthierbraillon/storyarchive/internal/scheduler"
	"github.com/gauthierbraillon/storyarchive/pkg/browser"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(v string, info *debug.BuildInfo) string {
	if v != "dev" {
		return v
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func buildInfo() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

// newRootCmd creates the root command for storyarchive CLI.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:          "storyarchive",
		Short:        "Archive Instagram stories and forward them to Telegram",
		Long:         "Storyarchive periodically downloads the live stories of configured accounts into a local directory and forwards new ones to a Telegram chat.",
		Version:      resolveVersion(version, buildInfo()),
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate("storyarchive version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: storyarchive.yaml in . or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Load environment variables from this file (default: .env if present)")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newSyncCmd(flags))
	rootCmd.AddCommand(newSeenCmd(flags))
	rootCmd.AddCommand(newLoginCmd(flags))
	rootCmd.AddCommand(newHistoryCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))

	return rootCmd
}

// app holds what a command needs after configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func loadApp(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger, closer: closer}, nil
}

func (a *app) Close() {
	_ = a.closer.Close()
}

// newScheduler wires the engine, the dispatcher and the history store.
// A history store that cannot be opened is skipped with a warning.
// The returned cleanup closes the history store.
func (a *app) newScheduler(deliver bool) (*scheduler.Scheduler, func(), error) {
	remote, err := newRemote(a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []scheduler.Option{scheduler.WithLogger(a.logger)}
	if deliver {
		opts = append(opts, scheduler.WithDeliverer(newDispatcher(a.cfg, a.logger)))
	}

	cleanup := func() {}
	if a.cfg.History.Path != "" {
		store, err := history.Open(a.cfg.History.Path)
		if err != nil {
			a.logger.Warn("History unavailable, cycles will not be recorded", "path", a.cfg.History.Path, "error", err)
		} else {
			opts = append(opts, scheduler.WithRecorder(store))
			cleanup = func() { _ = store.Close() }
		}
	}

	sched := scheduler.New(scheduler.Config{
		Credentials: archive.Credentials{Username: a.cfg.Account.Username, Password: a.cfg.Account.Password},
		Targets:     a.cfg.Targets,
		StorageDir:  a.cfg.Storage.Dir,
		Interval:    a.cfg.Interval,
	}, archive.NewEngine(remote, a.logger), opts...)

	return sched, cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// newRunCmd creates the run subcommand.
func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Archive and forward stories on a fixed interval",
		Long:  "Run a cycle immediately, then one every configured interval until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.Validate(true); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			sched, cleanup, err := a.newScheduler(true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd)
			defer stop()

			return sched.Run(ctx)
		},
	}
}

// newSyncCmd creates the sync subcommand.
func newSyncCmd(flags *globalFlags) *cobra.Command {
	var noDeliver bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single archive cycle",
		Long:  "Download new stories for every target once, forward them unless --no-deliver is set, and print what happened.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.Validate(!noDeliver); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			sched, cleanup, err := a.newScheduler(!noDeliver)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signalContext(cmd)
			defer stop()

			summary, err := sched.RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatSummary(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noDeliver, "no-deliver", false, "Download only, do not send anything to Telegram")

	return cmd
}

// newSeenCmd creates the seen subcommand.
func newSeenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seen",
		Short: "List stories already archived",
		Long:  "Print the identifiers derived from the files in the storage directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			seen, err := archive.DeriveSeenSet(a.cfg.Storage.Dir)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatSeen(seen))
			return nil
		},
	}
}

// newLoginCmd creates the login subcommand.
func newLoginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the Instagram credentials",
		Long:  "Log in once with the configured account and persist the device identity. Opens the security checkpoint in a browser if Instagram asks for one.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Account.Username == "" || a.cfg.Account.Password == "" {
				return fmt.Errorf("missing credentials: set account.username and account.password (or STORYARCHIVE_ACCOUNT_USERNAME and STORYARCHIVE_ACCOUNT_PASSWORD)")
			}

			client, err := newInstagramClient(a.cfg, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logging in as %s...\n", a.cfg.Account.Username)

			ctx, stop := signalContext(cmd)
			defer stop()

			s, err := client.Login(ctx, a.cfg.Account.Username, a.cfg.Account.Password)
			var challenge *instagram.ChallengeError
			if errors.As(err, &challenge) {
				openChallenge(out, a.cfg.Instagram.BaseURL, challenge.URL)
				return fmt.Errorf("login not completed: confirm the checkpoint, then run 'storyarchive login' again")
			}
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(out, "Successfully logged in as %s!\n", s.User.Username)
			fmt.Fprintf(out, "Device settings saved to: %s\n", a.cfg.Session.Dir)
			return nil
		},
	}
}

func openChallenge(out io.Writer, baseURL, ref string) {
	fmt.Fprintf(out, "Instagram requires a security checkpoint.\n")

	checkpoint, err := browser.Resolve(baseURL, ref)
	if err != nil {
		fmt.Fprintf(out, "Open the Instagram app to confirm this login.\n")
		return
	}

	fmt.Fprintf(out, "Opening browser...\n")
	if err := browser.Open(checkpoint); err != nil {
		fmt.Fprintf(out, "Could not open browser. Please visit:\n%s\n", checkpoint)
	}
}

// newHistoryCmd creates the history subcommand.
func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent archive cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("invalid limit %d: must be positive", limit)
			}

			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.History.Path == "" {
				return fmt.Errorf("history is disabled: set history.path to record cycles")
			}

			store, err := history.Open(a.cfg.History.Path)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			cycles, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatHistory(cycles))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Maximum number of cycles to display")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the configuration after defaults, the config file and environment overrides are applied. Secrets are redacted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}

			source := a.cfg.File
			if source == "" {
				source = "(none, defaults and environment only)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Config file: %s\n%s", source, out)
			return nil
		},
	}
}
