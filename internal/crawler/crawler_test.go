package crawler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/byfnoel/collie/pkg/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves preset documents keyed by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]*fetcher.Feed
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetcher.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if doc, ok := f.docs[url]; ok {
		return doc, nil
	}
	return &fetcher.Feed{}, nil
}

func openLibrary(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewStore("bbolt", filepath.Join(t.TempDir(), "lib.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func entry(title string, at time.Time) fetcher.Entry {
	return fetcher.Entry{Title: title, Link: "https://example.com/" + title, PublishedAt: at}
}

func TestFetchKeepsEntriesNewerThanCheckedAt(t *testing.T) {
	lib := openLibrary(t)
	feed, err := lib.CreateFeed(domain.FeedToCreate{Title: "blog", Link: "https://example.com/rss"})
	require.NoError(t, err)
	require.NoError(t, lib.UpdateFeed(domain.FeedToUpdate{ID: feed.ID, CheckedAt: &t1}))

	f := &fakeFetcher{docs: map[string]*fetcher.Feed{
		"https://example.com/rss": {Entries: []fetcher.Entry{entry("old", t0), entry("same", t1), entry("new", t2)}},
	}}
	svc := NewService(f, lib, 2, nil)
	now := t2.Add(time.Minute)
	svc.now = func() time.Time { return now }

	created, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "new", created[0].Title)
	assert.Equal(t, feed.ID, created[0].Feed)

	got, err := lib.ReadFeed(feed.ID)
	require.NoError(t, err)
	assert.True(t, got.CheckedAt.Equal(now), "checked_at = %v, want %v", got.CheckedAt, now)

	again, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestFetchNeverCheckedFeed(t *testing.T) {
	lib := openLibrary(t)
	backfill, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://a/rss", FetchOldItems: true})
	require.NoError(t, err)
	baseline, err := lib.CreateFeed(domain.FeedToCreate{Title: "b", Link: "https://b/rss"})
	require.NoError(t, err)

	doc := &fetcher.Feed{Title: "Feed A", Entries: []fetcher.Entry{entry("x", t0), entry("y", t1)}}
	f := &fakeFetcher{docs: map[string]*fetcher.Feed{"https://a/rss": doc, "https://b/rss": doc}}

	created, err := NewService(f, lib, 0, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, it := range created {
		assert.Equal(t, backfill.ID, it.Feed, "baseline feed must not contribute items")
	}

	named, err := lib.ReadFeed(backfill.ID)
	require.NoError(t, err)
	assert.Equal(t, "Feed A", named.Title)

	kept, err := lib.ReadFeed(baseline.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", kept.Title)
	assert.False(t, kept.CheckedAt.IsZero(), "baseline feed not advanced")
}

func TestFetchSkipsFailingAndUnsubscribedFeeds(t *testing.T) {
	lib := openLibrary(t)
	bad, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://bad/rss", FetchOldItems: true})
	require.NoError(t, err)
	good, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://good/rss", FetchOldItems: true})
	require.NoError(t, err)
	off, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://off/rss", FetchOldItems: true})
	require.NoError(t, err)
	unsub := domain.FeedUnsubscribed
	require.NoError(t, lib.UpdateFeed(domain.FeedToUpdate{ID: off.ID, Status: &unsub}))

	f := &fakeFetcher{
		docs: map[string]*fetcher.Feed{"https://good/rss": {Entries: []fetcher.Entry{entry("ok", t0)}}},
		errs: map[string]error{"https://bad/rss": errors.New("dns failure")},
	}

	created, err := NewService(f, lib, 4, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, good.ID, created[0].Feed)
	assert.NotContains(t, f.calls, "https://off/rss")

	stale, err := lib.ReadFeed(bad.ID)
	require.NoError(t, err)
	assert.True(t, stale.CheckedAt.IsZero(), "failed feed must keep its checked_at")
}

func TestFetchUndatedEntriesAreDeduplicated(t *testing.T) {
	lib := openLibrary(t)
	_, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://u/rss", FetchOldItems: true})
	require.NoError(t, err)
	f := &fakeFetcher{docs: map[string]*fetcher.Feed{
		"https://u/rss": {Entries: []fetcher.Entry{{Title: "undated", Link: "https://u/1"}}},
	}}
	svc := NewService(f, lib, 1, nil)

	first, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	second, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestFetchEditedEntryWithSameGUIDIsNotDuplicated(t *testing.T) {
	lib := openLibrary(t)
	_, err := lib.CreateFeed(domain.FeedToCreate{Link: "https://g/rss", FetchOldItems: true})
	require.NoError(t, err)

	original := fetcher.Entry{GUID: "urn:post:7", Title: "Draft", Link: "https://g/7"}
	f := &fakeFetcher{docs: map[string]*fetcher.Feed{
		"https://g/rss": {Entries: []fetcher.Entry{original}},
	}}
	svc := NewService(f, lib, 1, nil)

	first, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	edited := original
	edited.Title = "Final"
	edited.Description = "now with a body"
	f.mu.Lock()
	f.docs["https://g/rss"] = &fetcher.Feed{Entries: []fetcher.Entry{edited}}
	f.mu.Unlock()

	second, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestFetchRequiresCollaborators(t *testing.T) {
	var svc *Service
	_, err := svc.Fetch(context.Background())
	assert.Error(t, err)
}
