// Package source picks between the local library and the upstream server for
// feed and item operations.
package source

import (
	"context"
	"fmt"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/byfnoel/collie/internal/upstream"
	"github.com/byfnoel/collie/pkg/httpclient"
)

// Mode names where reads and writes go.
type Mode string

const (
	ModeLocal    Mode = "local"
	ModeUpstream Mode = "upstream"
)

// Source is the feed and item surface shared by both modes.
type Source interface {
	Mode() Mode

	CreateFeed(ctx context.Context, arg domain.FeedToCreate) error
	ReadAllFeeds(ctx context.Context) ([]domain.Feed, error)
	ReadFeed(ctx context.Context, id int) (*domain.Feed, error)
	UpdateFeed(ctx context.Context, arg domain.FeedToUpdate) error
	DeleteFeed(ctx context.Context, id int) error

	CreateItem(ctx context.Context, arg domain.ItemToCreate) error
	ReadAllItems(ctx context.Context, opt domain.ItemReadOption) ([]domain.Item, error)
	CountAllItems(ctx context.Context, opt domain.ItemReadOption) (int64, error)
	UpdateItem(ctx context.Context, arg domain.ItemToUpdate) error
	UpdateAllItems(ctx context.Context, arg domain.ItemToUpdateAll) error
}

// Select returns the upstream source when an upstream URL is configured and the
// local library otherwise. A URL without credentials yields
// upstream.ErrConfigurationMissing.
func Select(
	settings storage.Settings,
	library storage.Library,
	tokens *upstream.TokenCache,
	transport httpclient.Client,
	opts ...upstream.Option,
) (Source, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings store must not be nil")
	}
	up, err := storage.ReadUpstream(settings)
	if err != nil {
		return nil, fmt.Errorf("read upstream settings: %w", err)
	}

	if up.URL == "" {
		if library == nil {
			return nil, fmt.Errorf("local library must not be nil")
		}
		return NewLocal(library), nil
	}

	client, err := upstream.New(upstream.Config{
		BaseURL: up.URL,
		Credentials: upstream.Credentials{
			AccessKey: up.AccessKey,
			SecretKey: up.SecretKey,
		},
	}, transport, tokens, opts...)
	if err != nil {
		return nil, err
	}
	return NewUpstream(upstream.NewGateway(client)), nil
}

// Local serves everything from the on-disk library.
type Local struct {
	lib storage.Library
}

func NewLocal(lib storage.Library) *Local {
	return &Local{lib: lib}
}

func (l *Local) Mode() Mode { return ModeLocal }

func (l *Local) CreateFeed(_ context.Context, arg domain.FeedToCreate) error {
	_, err := l.lib.CreateFeed(arg)
	return err
}

func (l *Local) ReadAllFeeds(context.Context) ([]domain.Feed, error) {
	return l.lib.ReadAllFeeds()
}

func (l *Local) ReadFeed(_ context.Context, id int) (*domain.Feed, error) {
	return l.lib.ReadFeed(id)
}

func (l *Local) UpdateFeed(_ context.Context, arg domain.FeedToUpdate) error {
	return l.lib.UpdateFeed(arg)
}

func (l *Local) DeleteFeed(_ context.Context, id int) error {
	return l.lib.DeleteFeed(id)
}

// CreateItem ignores duplicates silently.
func (l *Local) CreateItem(_ context.Context, arg domain.ItemToCreate) error {
	_, err := l.lib.CreateItem(arg)
	return err
}

func (l *Local) ReadAllItems(_ context.Context, opt domain.ItemReadOption) ([]domain.Item, error) {
	return l.lib.ReadAllItems(opt)
}

func (l *Local) CountAllItems(_ context.Context, opt domain.ItemReadOption) (int64, error) {
	return l.lib.CountAllItems(opt)
}

func (l *Local) UpdateItem(_ context.Context, arg domain.ItemToUpdate) error {
	return l.lib.UpdateItem(arg)
}

func (l *Local) UpdateAllItems(_ context.Context, arg domain.ItemToUpdateAll) error {
	return l.lib.UpdateAllItems(arg)
}

// Upstream forwards every call to the remote server.
type Upstream struct {
	*upstream.Gateway
}

func NewUpstream(gw *upstream.Gateway) *Upstream {
	return &Upstream{Gateway: gw}
}

func (u *Upstream) Mode() Mode { return ModeUpstream }

var (
	_ Source = (*Local)(nil)
	_ Source = (*Upstream)(nil)
)
