package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/byfnoel/collie/internal/domain"
)

// Package storage provides the settings store and the local feed library.

// ErrNotFound is returned when an update targets a feed or item that does not exist.
var ErrNotFound = errors.New("not found")

// Settings is a string key/value store of user-level preferences.
type Settings interface {
	// Get returns the value and whether the key is present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Library is the local feed and item store used when no upstream is configured.
type Library interface {
	CreateFeed(arg domain.FeedToCreate) (domain.Feed, error)
	ReadAllFeeds() ([]domain.Feed, error)
	ReadFeed(id int) (*domain.Feed, error)
	UpdateFeed(arg domain.FeedToUpdate) error
	DeleteFeed(id int) error

	// CreateItem returns nil without error when the feed already holds an item with the same fingerprint.
	CreateItem(arg domain.ItemToCreate) (*domain.Item, error)
	ReadAllItems(opt domain.ItemReadOption) ([]domain.Item, error)
	CountAllItems(opt domain.ItemReadOption) (int64, error)
	UpdateItem(arg domain.ItemToUpdate) error
	UpdateAllItems(arg domain.ItemToUpdateAll) error
}

// Store bundles settings and library on one database.
type Store interface {
	Settings
	Library
	Close() error
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}
