package cli

import (
	"fmt"

	"github.com/byfnoel/collie/internal/app"
	"github.com/byfnoel/collie/internal/domain"
	"github.com/spf13/cobra"
)

func newFeedsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage feed subscriptions",
	}
	cmd.AddCommand(
		newFeedsListCmd(e),
		newFeedsGetCmd(e),
		newFeedsAddCmd(e),
		newFeedsUpdateCmd(e),
		newFeedsDeleteCmd(e),
	)
	return cmd
}

func newFeedsListCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withRuntime(func(rt *app.Runtime) error {
				feeds, err := rt.Source().ReadAllFeeds(cmd.Context())
				if err != nil {
					return fmt.Errorf("list feeds: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), feeds)
				}
				return printFeeds(cmd.OutOrStdout(), feeds)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newFeedsGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.withRuntime(func(rt *app.Runtime) error {
				feed, err := rt.Source().ReadFeed(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("get feed %d: %w", id, err)
				}
				if feed == nil {
					return fmt.Errorf("feed %d not found", id)
				}
				return printJSON(cmd.OutOrStdout(), feed)
			})
		},
	}
}

func newFeedsAddCmd(e *env) *cobra.Command {
	var (
		title    string
		fetchOld bool
	)
	cmd := &cobra.Command{
		Use:   "add LINK",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := domain.FeedToCreate{Title: title, Link: args[0], FetchOldItems: fetchOld}
			return e.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Source().CreateFeed(cmd.Context(), arg); err != nil {
					return fmt.Errorf("add feed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscribed to %s\n", arg.Link)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "feed title (filled from the feed when empty)")
	cmd.Flags().BoolVar(&fetchOld, "fetch-old", false, "import entries published before the first sync")
	return cmd
}

func newFeedsUpdateCmd(e *env) *cobra.Command {
	var (
		title, link, status string
		fetchOld            bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change feed fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			arg := domain.FeedToUpdate{ID: id}
			flags := cmd.Flags()
			if flags.Changed("title") {
				arg.Title = &title
			}
			if flags.Changed("link") {
				arg.Link = &link
			}
			if flags.Changed("status") {
				st, err := parseFeedStatus(status)
				if err != nil {
					return err
				}
				arg.Status = &st
			}
			if flags.Changed("fetch-old") {
				arg.FetchOldItems = &fetchOld
			}

			return e.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Source().UpdateFeed(cmd.Context(), arg); err != nil {
					return fmt.Errorf("update feed %d: %w", id, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&link, "link", "", "new feed URL")
	cmd.Flags().StringVar(&status, "status", "", "subscribed or unsubscribed")
	cmd.Flags().BoolVar(&fetchOld, "fetch-old", false, "import entries published before the first sync")
	return cmd
}

func newFeedsDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a feed and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return e.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Source().DeleteFeed(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete feed %d: %w", id, err)
				}
				return nil
			})
		},
	}
}
