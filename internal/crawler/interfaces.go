package crawler

import (
	"context"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/pkg/fetcher"
)

// FeedFetcher downloads and parses one feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Feed, error)
}

// FeedLibrary is the slice of the local library the crawler writes to.
type FeedLibrary interface {
	ReadAllFeeds() ([]domain.Feed, error)
	UpdateFeed(arg domain.FeedToUpdate) error
	CreateItem(arg domain.ItemToCreate) (*domain.Item, error)
}
