package cli

import (
	"fmt"

	"github.com/byfnoel/collie/internal/app"
	"github.com/spf13/cobra"
)

func newSyncCmd(e *env) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the sync worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withRuntime(func(rt *app.Runtime) error {
				s, err := app.NewSyncer(cmd.Context(), rt)
				if err != nil {
					return err
				}
				if !once {
					return s.Run(cmd.Context())
				}
				n, err := s.Once(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d new items\n", n)
				return nil
			}, app.WithLocalFallback())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single tick and exit")
	return cmd
}
