// Package cli provides the collie command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/byfnoel/collie/internal/app"
	"github.com/byfnoel/collie/internal/config"
	"github.com/byfnoel/collie/internal/logger"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

// env is shared by every subcommand of one root.
type env struct {
	cfg *config.Config
	log logger.Logger
}

// withRuntime opens the store and source for the duration of fn.
func (e *env) withRuntime(fn func(rt *app.Runtime) error, opts ...app.RuntimeOption) error {
	rt, err := app.NewRuntime(e.cfg, e.log, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd(cfg *config.Config, log logger.Logger) *cobra.Command {
	e := &env{cfg: cfg, log: logger.Ensure(log)}

	root := &cobra.Command{
		Use:           "collie",
		Short:         "Feed reader sync core",
		Long:          "collie keeps a local feed library, or a remote collie server, in sync and announces new items.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg == nil {
				return fmt.Errorf("config must not be nil")
			}
			if cmd.Context() == nil {
				cmd.SetContext(context.Background())
			}
			return nil
		},
	}

	root.AddCommand(
		newVersionCmd(),
		newSyncCmd(e),
		newFeedsCmd(e),
		newItemsCmd(e),
		newSettingsCmd(e),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "collie %s\n", Version)
		},
	}
}
