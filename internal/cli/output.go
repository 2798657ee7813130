package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/byfnoel/collie/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printFeeds(w io.Writer, feeds []domain.Feed) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tCHECKED\tLINK")
	for _, f := range feeds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Title, f.Status, formatTime(f.CheckedAt), f.Link)
	}
	return tw.Flush()
}

func printItems(w io.Writer, items []domain.Item) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tFEED\tSTATUS\tSAVED\tPUBLISHED\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n",
			it.ID, it.Feed.Title, it.Status, it.IsSaved, formatTime(it.PublishedAt), it.Title)
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseItemStatus(raw string) (domain.ItemStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "read":
		return domain.ItemRead, nil
	case "unread":
		return domain.ItemUnread, nil
	default:
		return "", fmt.Errorf("invalid item status %q (want read or unread)", raw)
	}
}

func parseFeedStatus(raw string) (domain.FeedStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "subscribed":
		return domain.FeedSubscribed, nil
	case "unsubscribed":
		return domain.FeedUnsubscribed, nil
	default:
		return "", fmt.Errorf("invalid feed status %q (want subscribed or unsubscribed)", raw)
	}
}
