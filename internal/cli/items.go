package cli

import (
	"fmt"
	"strings"

	"github.com/byfnoel/collie/internal/app"
	"github.com/byfnoel/collie/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// itemFilter binds the read filters shared by list and count.
type itemFilter struct {
	feed   int
	status string
	saved  bool
	order  string
	limit  int
	offset int
}

func (f *itemFilter) register(fs *pflag.FlagSet, paging bool) {
	fs.IntVar(&f.feed, "feed", 0, "only items of this feed id")
	fs.StringVar(&f.status, "status", "", "read or unread")
	fs.BoolVar(&f.saved, "saved", false, "only saved items (--saved=false for unsaved)")
	if paging {
		fs.StringVar(&f.order, "order", "desc", "publication order: asc or desc")
		fs.IntVar(&f.limit, "limit", 0, "maximum number of items")
		fs.IntVar(&f.offset, "offset", 0, "items to skip")
	}
}

func (f *itemFilter) option(fs *pflag.FlagSet) (domain.ItemReadOption, error) {
	var opt domain.ItemReadOption
	if fs.Changed("feed") {
		feed := f.feed
		opt.Feed = &feed
	}
	if fs.Changed("status") {
		st, err := parseItemStatus(f.status)
		if err != nil {
			return opt, err
		}
		opt.Status = &st
	}
	if fs.Changed("saved") {
		saved := f.saved
		opt.IsSaved = &saved
	}
	if fs.Changed("order") {
		var order domain.ItemOrder
		switch strings.ToLower(f.order) {
		case "asc":
			order = domain.OrderPublishedDateAsc
		case "desc":
			order = domain.OrderPublishedDateDesc
		default:
			return opt, fmt.Errorf("invalid order %q (want asc or desc)", f.order)
		}
		opt.OrderBy = &order
	}
	if fs.Changed("limit") {
		limit := f.limit
		opt.Limit = &limit
	}
	if fs.Changed("offset") {
		offset := f.offset
		opt.Offset = &offset
	}
	return opt, nil
}

func newItemsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Read and mark items",
	}
	cmd.AddCommand(
		newItemsListCmd(e),
		newItemsCountCmd(e),
		newItemsMarkCmd(e),
		newItemsMarkAllCmd(e),
	)
	return cmd
}

func newItemsListCmd(e *env) *cobra.Command {
	var (
		filter itemFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt, err := filter.option(cmd.Flags())
			if err != nil {
				return err
			}
			return e.withRuntime(func(rt *app.Runtime) error {
				items, err := rt.Source().ReadAllItems(cmd.Context(), opt)
				if err != nil {
					return fmt.Errorf("list items: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), items)
				}
				return printItems(cmd.OutOrStdout(), items)
			})
		},
	}
	filter.register(cmd.Flags(), true)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newItemsCountCmd(e *env) *cobra.Command {
	var filter itemFilter
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opt, err := filter.option(cmd.Flags())
			if err != nil {
				return err
			}
			return e.withRuntime(func(rt *app.Runtime) error {
				n, err := rt.Source().CountAllItems(cmd.Context(), opt)
				if err != nil {
					return fmt.Errorf("count items: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	filter.register(cmd.Flags(), false)
	return cmd
}

// markFlags holds the status and saved changes shared by mark and mark-all.
type markFlags struct {
	status string
	saved  bool
}

func (m *markFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&m.status, "status", "", "read or unread")
	fs.BoolVar(&m.saved, "saved", false, "save or unsave (--saved=false)")
}

func (m *markFlags) values(fs *pflag.FlagSet) (*domain.ItemStatus, *bool, error) {
	var (
		status *domain.ItemStatus
		saved  *bool
	)
	if fs.Changed("status") {
		st, err := parseItemStatus(m.status)
		if err != nil {
			return nil, nil, err
		}
		status = &st
	}
	if fs.Changed("saved") {
		v := m.saved
		saved = &v
	}
	if status == nil && saved == nil {
		return nil, nil, fmt.Errorf("nothing to change: pass --status and/or --saved")
	}
	return status, saved, nil
}

func newItemsMarkCmd(e *env) *cobra.Command {
	var mark markFlags
	cmd := &cobra.Command{
		Use:   "mark ID",
		Short: "Change the status or saved flag of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, saved, err := mark.values(cmd.Flags())
			if err != nil {
				return err
			}
			arg := domain.ItemToUpdate{ID: id, Status: status, IsSaved: saved}
			return e.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Source().UpdateItem(cmd.Context(), arg); err != nil {
					return fmt.Errorf("mark item %d: %w", id, err)
				}
				return nil
			})
		},
	}
	mark.register(cmd.Flags())
	return cmd
}

func newItemsMarkAllCmd(e *env) *cobra.Command {
	var mark markFlags
	cmd := &cobra.Command{
		Use:   "mark-all [ID...]",
		Short: "Change the listed items, or every item when none are listed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			status, saved, err := mark.values(cmd.Flags())
			if err != nil {
				return err
			}
			arg := domain.ItemToUpdateAll{IDs: ids, Status: status, IsSaved: saved}
			return e.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Source().UpdateAllItems(cmd.Context(), arg); err != nil {
					return fmt.Errorf("mark items: %w", err)
				}
				return nil
			})
		},
	}
	mark.register(cmd.Flags())
	return cmd
}
