package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/teadiary/internal/buildinfo"
	"github.com/dmitrijs2005/teadiary/internal/client/config"
	"github.com/dmitrijs2005/teadiary/internal/models"
)

// newAppFn is a test seam for NewApp.
var newAppFn = NewApp

// NewCommand builds the teactl command tree. Every subcommand opens the
// local diary, acts once and exits; commands that work on records use the
// account named by --email, or the remembered session.
func NewCommand() *cobra.Command {
	var (
		configFile string
		email      string
	)

	root := &cobra.Command{
		Use:   "teactl",
		Short: "teactl works with the tea diary without the interactive shell",
		Long: `teactl exports, imports, syncs and reports on the local tea diary.

Example:
  teactl --email ann@example.com export json backup.json
  teactl import backup.json
  teactl --email ann@example.com sync`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&email, "email", "", "account to act on (default: the signed-in one)")

	run := func(needAccount bool, fn func(a *App, ctx context.Context, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := newAppFn(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			a.out = cmd.OutOrStdout()

			if needAccount {
				if err := a.useAccount(ctx, email); err != nil {
					return err
				}
			}
			return fn(a, ctx, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "export json|csv|html|link [path]",
			Short: "Export the account's diary",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  run(true, (*App).Export),
		},
		&cobra.Command{
			Use:   "import <file|link>",
			Short: "Merge a backup file or share link into the local diary",
			Args:  cobra.MinimumNArgs(1),
			RunE:  run(false, (*App).Import),
		},
		&cobra.Command{
			Use:   "report [path]",
			Short: "Write an HTML tasting report",
			Args:  cobra.MaximumNArgs(1),
			RunE: run(true, func(a *App, ctx context.Context, args []string) error {
				return a.Export(ctx, append([]string{"html"}, args...))
			}),
		},
		&cobra.Command{
			Use:   "list [text]",
			Short: "List tasting records",
			RunE:  run(true, (*App).List),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print tasting statistics",
			Args:  cobra.NoArgs,
			RunE: run(true, func(a *App, ctx context.Context, _ []string) error {
				return a.Stats(ctx)
			}),
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Sync the account with the remote store",
			Args:  cobra.NoArgs,
			RunE: run(true, func(a *App, ctx context.Context, _ []string) error {
				if err := a.Sync(ctx); err != nil {
					return err
				}
				return a.Status(ctx)
			}),
		},
		&cobra.Command{
			Use:   "diag",
			Short: "Check local storage and remote connectivity",
			Args:  cobra.NoArgs,
			RunE: run(false, func(a *App, ctx context.Context, _ []string) error {
				return a.Diag(ctx)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				buildinfo.PrintBuildData(cmd.OutOrStdout())
			},
		},
	)
	return root
}

// useAccount selects the account with the given email, or the remembered
// session when email is empty. No background sync is started.
func (a *App) useAccount(ctx context.Context, email string) error {
	var (
		acc models.Account
		ok  bool
	)
	if email == "" {
		var err error
		acc, ok, err = a.auth.CurrentAccount(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("nobody is signed in; pass --email")
		}
	} else {
		snap, err := a.store.Load(ctx)
		if err != nil {
			return err
		}
		acc, ok = snap.FindAccount(email)
		if !ok {
			return fmt.Errorf("no local account for %s", models.NormalizeEmail(email))
		}
	}

	a.mu.Lock()
	a.account = &acc
	a.mu.Unlock()
	return nil
}
