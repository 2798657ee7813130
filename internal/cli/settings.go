package cli

import (
	"fmt"
	"slices"

	"github.com/byfnoel/collie/internal/storage"
	"github.com/spf13/cobra"
)

// The settings commands talk to the store directly so they keep working when the
// upstream configuration is incomplete.

func newSettingsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write sync settings",
	}
	cmd.AddCommand(newSettingsGetCmd(e), newSettingsSetCmd(e))
	return cmd
}

func (e *env) withStore(fn func(store storage.Store) error) error {
	store, err := storage.NewStore(e.cfg.StorageType, e.cfg.BBoltPath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			e.log.ErrorObj("storage close failed", "error", err)
		}
	}()
	return fn(store)
}

func newSettingsGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := storage.KnownKeys()
			if len(args) == 1 {
				if !slices.Contains(keys, args[0]) {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				keys = args
			}
			return e.withStore(func(store storage.Store) error {
				out := cmd.OutOrStdout()
				for _, key := range keys {
					v, err := storage.GetOrDefault(store, key)
					if err != nil {
						return fmt.Errorf("read %s: %w", key, err)
					}
					if key == storage.KeyUpstreamSecret && v != "" {
						v = "********"
					}
					if len(args) == 1 {
						fmt.Fprintln(out, v)
					} else {
						fmt.Fprintf(out, "%s=%s\n", key, v)
					}
				}
				return nil
			})
		},
	}
}

func newSettingsSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := storage.ValidateSetting(key, value); err != nil {
				return err
			}
			return e.withStore(func(store storage.Store) error {
				if err := store.Set(key, value); err != nil {
					return fmt.Errorf("write %s: %w", key, err)
				}
				return nil
			})
		},
	}
}
