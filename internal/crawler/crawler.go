package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/logger"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Service crawls subscribed feeds into the local library.
type Service struct {
	fetcher     FeedFetcher
	library     FeedLibrary
	concurrency int
	log         logger.Logger
	now         func() time.Time
}

// NewService wires a crawler. concurrency below 1 falls back to a small default.
func NewService(f FeedFetcher, lib FeedLibrary, concurrency int, log logger.Logger) *Service {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Service{
		fetcher:     f,
		library:     lib,
		concurrency: concurrency,
		log:         logger.Ensure(log),
		now:         time.Now,
	}
}

// Fetch crawls every subscribed feed and returns the items that were newly stored.
// A failing feed is logged and skipped; it does not fail the pass.
func (s *Service) Fetch(ctx context.Context) ([]domain.ItemToCreate, error) {
	if s == nil || s.fetcher == nil || s.library == nil {
		return nil, fmt.Errorf("crawler service is not initialized")
	}

	feeds, err := s.library.ReadAllFeeds()
	if err != nil {
		return nil, fmt.Errorf("read feeds: %w", err)
	}

	var (
		mu      sync.Mutex
		created []domain.ItemToCreate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, feed := range feeds {
		if feed.Status != domain.FeedSubscribed {
			continue
		}
		g.Go(func() error {
			items, err := s.crawlFeed(gctx, feed)
			mu.Lock()
			created = append(created, items...)
			mu.Unlock()
			if err != nil {
				s.log.ErrorObj("feed crawl failed", "feed_error", map[string]any{
					"feed_id": feed.ID,
					"link":    feed.Link,
					"error":   err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return created, err
	}
	return created, nil
}

// crawlFeed stores entries published after the feed's checked_at. A feed that was never
// checked contributes everything when fetch_old_items is set and nothing otherwise.
func (s *Service) crawlFeed(ctx context.Context, feed domain.Feed) ([]domain.ItemToCreate, error) {
	doc, err := s.fetcher.Fetch(ctx, feed.Link)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var created []domain.ItemToCreate
	for _, entry := range doc.Entries {
		published := entry.PublishedAt
		if published.IsZero() {
			published = now
		}
		switch {
		case !feed.CheckedAt.IsZero():
			if !published.After(feed.CheckedAt) {
				continue
			}
		case !feed.FetchOldItems:
			continue
		}

		item, err := s.library.CreateItem(domain.ItemToCreate{
			Author:      entry.Author,
			Title:       entry.Title,
			Description: entry.Description,
			Link:        entry.Link,
			Status:      domain.ItemUnread,
			PublishedAt: published,
			Feed:        feed.ID,
			GUID:        entry.GUID,
		})
		if err != nil {
			return created, fmt.Errorf("store item %q: %w", entry.Link, err)
		}
		if item != nil {
			created = append(created, item.ToCreate())
		}
	}

	update := domain.FeedToUpdate{ID: feed.ID, CheckedAt: &now}
	if feed.Title == "" && doc.Title != "" {
		update.Title = &doc.Title
	}
	if err := s.library.UpdateFeed(update); err != nil {
		return created, fmt.Errorf("advance checked_at: %w", err)
	}

	s.log.InfoObj("feed crawl completed", "feed_result", map[string]any{
		"feed_id":   feed.ID,
		"entries":   len(doc.Entries),
		"new_items": len(created),
	})
	return created, nil
}
