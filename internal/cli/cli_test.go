package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/byfnoel/collie/internal/config"
	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:          "collie",
		StorageType:      "bbolt",
		BBoltPath:        filepath.Join(t.TempDir(), "collie.db"),
		FetchConcurrency: 2,
	}
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(cfg, nil)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()
	out, err := execute(t, cfg, args...)
	require.NoError(t, err, "collie %s", strings.Join(args, " "))
	return out
}

func seed(t *testing.T, cfg *config.Config, fn func(store storage.Store)) {
	t.Helper()
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	require.NoError(t, err)
	fn(store)
	require.NoError(t, store.Close())
}

func TestVersion(t *testing.T) {
	out := mustExecute(t, testConfig(t), "version")
	assert.Equal(t, "collie dev\n", out)
}

func TestSettingsRoundTrip(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, "300\n", mustExecute(t, cfg, "settings", "get", storage.KeyPollingFrequency))

	mustExecute(t, cfg, "settings", "set", storage.KeyPollingFrequency, "60")
	mustExecute(t, cfg, "settings", "set", storage.KeyUpstreamSecret, "hunter2")
	assert.Equal(t, "60\n", mustExecute(t, cfg, "settings", "get", storage.KeyPollingFrequency))

	all := mustExecute(t, cfg, "settings", "get")
	assert.Contains(t, all, "polling_frequency=60\n")
	assert.Contains(t, all, "notification=true\n")
	assert.Contains(t, all, "upstream_secret=********\n")
	assert.NotContains(t, all, "hunter2")

	_, err := execute(t, cfg, "settings", "set", storage.KeyPollingFrequency, "soon")
	assert.Error(t, err)
	_, err = execute(t, cfg, "settings", "set", "colour", "blue")
	assert.Error(t, err)
	_, err = execute(t, cfg, "settings", "get", "colour")
	assert.Error(t, err)
}

func TestFeedsLifecycle(t *testing.T) {
	cfg := testConfig(t)

	mustExecute(t, cfg, "feeds", "add", "https://go.dev/blog/feed.atom", "--title", "Go blog")

	var feeds []domain.Feed
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, cfg, "feeds", "list", "--json")), &feeds))
	require.Len(t, feeds, 1)
	id := feeds[0].ID

	mustExecute(t, cfg, "feeds", "update", strconv.Itoa(id), "--title", "The Go Blog", "--status", "unsubscribed")

	var feed domain.Feed
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, cfg, "feeds", "get", strconv.Itoa(id))), &feed))
	assert.Equal(t, "The Go Blog", feed.Title)
	assert.Equal(t, domain.FeedUnsubscribed, feed.Status)

	table := mustExecute(t, cfg, "feeds", "list")
	assert.Contains(t, table, "The Go Blog")
	assert.Contains(t, table, "Unsubscribed")

	_, err := execute(t, cfg, "feeds", "update", strconv.Itoa(id), "--status", "paused")
	assert.Error(t, err)

	mustExecute(t, cfg, "feeds", "delete", strconv.Itoa(id))
	_, err = execute(t, cfg, "feeds", "get", strconv.Itoa(id))
	assert.Error(t, err)

	_, err = execute(t, cfg, "feeds", "get", "zero")
	assert.Error(t, err)
}

func TestItemsCommands(t *testing.T) {
	cfg := testConfig(t)
	published := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var feedID int
	seed(t, cfg, func(store storage.Store) {
		feed, err := store.CreateFeed(domain.FeedToCreate{Title: "Example", Link: "https://example.com/rss"})
		require.NoError(t, err)
		feedID = feed.ID
		for i, title := range []string{"first", "second", "third"} {
			_, err := store.CreateItem(domain.ItemToCreate{
				Title:       title,
				Link:        "https://example.com/" + title,
				Status:      domain.ItemUnread,
				PublishedAt: published.Add(time.Duration(i) * time.Hour),
				Feed:        feed.ID,
			})
			require.NoError(t, err)
		}
	})

	assert.Equal(t, "3\n", mustExecute(t, cfg, "items", "count", "--status", "unread"))

	var items []domain.Item
	require.NoError(t, json.Unmarshal([]byte(mustExecute(t, cfg, "items", "list", "--json", "--order", "asc", "--limit", "2")), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Title)
	assert.Equal(t, feedID, items[0].Feed.ID)

	mustExecute(t, cfg, "items", "mark", strconv.Itoa(items[0].ID), "--status", "read", "--saved")
	assert.Equal(t, "2\n", mustExecute(t, cfg, "items", "count", "--status", "unread"))
	assert.Equal(t, "1\n", mustExecute(t, cfg, "items", "count", "--saved"))

	mustExecute(t, cfg, "items", "mark-all", "--status", "read")
	assert.Equal(t, "0\n", mustExecute(t, cfg, "items", "count", "--status", "unread"))

	table := mustExecute(t, cfg, "items", "list", "--feed", strconv.Itoa(feedID))
	assert.Contains(t, table, "second")

	_, err := execute(t, cfg, "items", "mark", strconv.Itoa(items[0].ID))
	assert.Error(t, err, "mark needs a change")
	_, err = execute(t, cfg, "items", "list", "--order", "sideways")
	assert.Error(t, err)
	_, err = execute(t, cfg, "items", "count", "--status", "skimmed")
	assert.Error(t, err)
}

func TestSyncOnceLocal(t *testing.T) {
	out := mustExecute(t, testConfig(t), "sync", "--once")
	assert.Equal(t, "0 new items\n", out)
}

func TestFeedsListUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_, _ = w.Write([]byte(`"tok"`))
		case "/feeds":
			_, _ = w.Write([]byte(`[{"id":3,"title":"Remote feed","link":"https://example.org/rss","status":"Subscribed"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	mustExecute(t, cfg, "settings", "set", storage.KeyUpstreamURL, srv.URL)
	mustExecute(t, cfg, "settings", "set", storage.KeyUpstreamAccess, "access")

	_, err := execute(t, cfg, "feeds", "list")
	assert.Error(t, err, "credentials are incomplete")

	mustExecute(t, cfg, "settings", "set", storage.KeyUpstreamSecret, "secret")
	assert.Contains(t, mustExecute(t, cfg, "feeds", "list"), "Remote feed")
}
