// Package main is the entry point for the userdir admin CLI.
// It manages the user table and resolves uids against the configured directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prn-tf/userdir/internal/app"
	"github.com/prn-tf/userdir/internal/config"
	"github.com/prn-tf/userdir/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "userdir",
		Short: "User directory admin CLI",
		Long: `userdir manages the user table and resolves uids.

Unknown uids are provisioned from the configured LDAP directory the first
time they are looked up.`,
		SilenceUsage:  true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("userdir {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML configuration file (or set USERDIR_* env vars)")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newUserCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// withApp loads configuration, opens the directory and runs fn with it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger = logger.With().Str("cmd", cmd.CommandPath()).Logger()
	ctx := logger.WithContext(cmd.Context())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialise user directory")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close user directory")
		}
	}()

	if err := fn(ctx, a); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("command failed")
		return err
	}
	return nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}
