package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/byfnoel/collie/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	settingsBucket     = "settings"
	feedsBucket        = "feeds"
	itemsBucket        = "items"
	fingerprintsBucket = "item_fingerprints"
)

var allBuckets = []string{settingsBucket, feedsBucket, itemsBucket, fingerprintsBucket}

// boltStore implements Store backed by BoltDB. Feeds and items are JSON values keyed by
// big-endian sequence ids; fingerprints map "<feed id>/<fingerprint>" to an item id.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(settingsBucket)).Get([]byte(key))
		if v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (b *boltStore) Set(key, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(key), []byte(value))
	})
}

func (b *boltStore) CreateFeed(arg domain.FeedToCreate) (domain.Feed, error) {
	var feed domain.Feed
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(feedsBucket))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		feed = domain.Feed{
			ID:            int(seq),
			Title:         arg.Title,
			Link:          arg.Link,
			Status:        domain.FeedSubscribed,
			FetchOldItems: arg.FetchOldItems,
		}
		return putJSON(bucket, itob(feed.ID), feed)
	})
	return feed, err
}

func (b *boltStore) ReadAllFeeds() ([]domain.Feed, error) {
	feeds := []domain.Feed{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(feedsBucket)).ForEach(func(_, v []byte) error {
			var f domain.Feed
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("decode feed: %w", err)
			}
			feeds = append(feeds, f)
			return nil
		})
	})
	return feeds, err
}

// ReadFeed returns nil without error for an unknown id.
func (b *boltStore) ReadFeed(id int) (*domain.Feed, error) {
	var feed *domain.Feed
	err := b.db.View(func(tx *bolt.Tx) error {
		f, ok, err := getFeed(tx, id)
		if ok {
			feed = &f
		}
		return err
	})
	return feed, err
}

func (b *boltStore) UpdateFeed(arg domain.FeedToUpdate) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		feed, ok, err := getFeed(tx, arg.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("feed %d: %w", arg.ID, ErrNotFound)
		}
		if arg.Title != nil {
			feed.Title = *arg.Title
		}
		if arg.Link != nil {
			feed.Link = *arg.Link
		}
		if arg.Status != nil {
			feed.Status = *arg.Status
		}
		if arg.CheckedAt != nil {
			feed.CheckedAt = *arg.CheckedAt
		}
		if arg.FetchOldItems != nil {
			feed.FetchOldItems = *arg.FetchOldItems
		}
		return putJSON(tx.Bucket([]byte(feedsBucket)), itob(feed.ID), feed)
	})
}

// DeleteFeed removes the feed with its items. Deleting an unknown id is a no-op.
func (b *boltStore) DeleteFeed(id int) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		items := tx.Bucket([]byte(itemsBucket))
		prints := tx.Bucket([]byte(fingerprintsBucket))

		// Collect first; bbolt cursors are not stable across deletes.
		var doomed []domain.Item
		if err := items.ForEach(func(_, v []byte) error {
			var it domain.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
			if it.Feed.ID == id {
				doomed = append(doomed, it)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, it := range doomed {
			if err := prints.Delete(fingerprintKey(id, it.Fingerprint)); err != nil {
				return err
			}
			if err := items.Delete(itob(it.ID)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(feedsBucket)).Delete(itob(id))
	})
}

func (b *boltStore) CreateItem(arg domain.ItemToCreate) (*domain.Item, error) {
	var created *domain.Item
	err := b.db.Update(func(tx *bolt.Tx) error {
		feed, ok, err := getFeed(tx, arg.Feed)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("feed %d: %w", arg.Feed, ErrNotFound)
		}

		fingerprint := arg.Fingerprint()
		prints := tx.Bucket([]byte(fingerprintsBucket))
		if prints.Get(fingerprintKey(arg.Feed, fingerprint)) != nil {
			return nil
		}

		items := tx.Bucket([]byte(itemsBucket))
		seq, err := items.NextSequence()
		if err != nil {
			return err
		}
		status := arg.Status
		if status == "" {
			status = domain.ItemUnread
		}
		item := domain.Item{
			ID:          int(seq),
			Fingerprint: fingerprint,
			Author:      arg.Author,
			Title:       arg.Title,
			Description: arg.Description,
			Link:        arg.Link,
			Status:      status,
			PublishedAt: arg.PublishedAt,
			Feed:        domain.ItemFeed{ID: feed.ID, Title: feed.Title},
		}
		if err := putJSON(items, itob(item.ID), item); err != nil {
			return err
		}
		if err := prints.Put(fingerprintKey(arg.Feed, fingerprint), itob(item.ID)); err != nil {
			return err
		}
		created = &item
		return nil
	})
	return created, err
}

// ReadAllItems filters, orders by published date (newest first unless asked otherwise),
// then applies offset and limit.
func (b *boltStore) ReadAllItems(opt domain.ItemReadOption) ([]domain.Item, error) {
	items, err := b.matchingItems(opt)
	if err != nil {
		return nil, err
	}

	asc := opt.OrderBy != nil && *opt.OrderBy == domain.OrderPublishedDateAsc
	slices.SortStableFunc(items, func(a, c domain.Item) int {
		cmp := a.PublishedAt.Compare(c.PublishedAt)
		if cmp == 0 {
			cmp = a.ID - c.ID
		}
		if asc {
			return cmp
		}
		return -cmp
	})

	if opt.Offset != nil && *opt.Offset > 0 {
		if *opt.Offset >= len(items) {
			return []domain.Item{}, nil
		}
		items = items[*opt.Offset:]
	}
	if opt.Limit != nil && *opt.Limit >= 0 && *opt.Limit < len(items) {
		items = items[:*opt.Limit]
	}
	return items, nil
}

// CountAllItems ignores ordering and pagination.
func (b *boltStore) CountAllItems(opt domain.ItemReadOption) (int64, error) {
	items, err := b.matchingItems(opt)
	return int64(len(items)), err
}

func (b *boltStore) UpdateItem(arg domain.ItemToUpdate) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucket))
		raw := bucket.Get(itob(arg.ID))
		if raw == nil {
			return fmt.Errorf("item %d: %w", arg.ID, ErrNotFound)
		}
		var it domain.Item
		if err := json.Unmarshal(raw, &it); err != nil {
			return fmt.Errorf("decode item: %w", err)
		}
		applyItemUpdate(&it, arg.Status, arg.IsSaved)
		return putJSON(bucket, itob(it.ID), it)
	})
}

// UpdateAllItems applies the change to the listed ids, or to every item when none are listed.
func (b *boltStore) UpdateAllItems(arg domain.ItemToUpdateAll) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucket))
		var changed []domain.Item
		if err := bucket.ForEach(func(_, v []byte) error {
			var it domain.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
			if len(arg.IDs) == 0 || slices.Contains(arg.IDs, it.ID) {
				applyItemUpdate(&it, arg.Status, arg.IsSaved)
				changed = append(changed, it)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, it := range changed {
			if err := putJSON(bucket, itob(it.ID), it); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltStore) matchingItems(opt domain.ItemReadOption) ([]domain.Item, error) {
	items := []domain.Item{}
	err := b.db.View(func(tx *bolt.Tx) error {
		titles := map[int]string{}
		return tx.Bucket([]byte(itemsBucket)).ForEach(func(_, v []byte) error {
			var it domain.Item
			if err := json.Unmarshal(v, &it); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
			if !matches(it, opt) {
				return nil
			}
			title, ok := titles[it.Feed.ID]
			if !ok {
				if f, found, err := getFeed(tx, it.Feed.ID); err == nil && found {
					title = f.Title
				} else {
					title = it.Feed.Title
				}
				titles[it.Feed.ID] = title
			}
			it.Feed.Title = title
			items = append(items, it)
			return nil
		})
	})
	return items, err
}

func matches(it domain.Item, opt domain.ItemReadOption) bool {
	if len(opt.IDs) > 0 && !slices.Contains(opt.IDs, it.ID) {
		return false
	}
	if opt.Feed != nil && it.Feed.ID != *opt.Feed {
		return false
	}
	if opt.Status != nil && it.Status != *opt.Status {
		return false
	}
	if opt.IsSaved != nil && it.IsSaved != *opt.IsSaved {
		return false
	}
	return true
}

func applyItemUpdate(it *domain.Item, status *domain.ItemStatus, saved *bool) {
	if status != nil {
		it.Status = *status
	}
	if saved != nil {
		it.IsSaved = *saved
	}
}

func getFeed(tx *bolt.Tx, id int) (domain.Feed, bool, error) {
	raw := tx.Bucket([]byte(feedsBucket)).Get(itob(id))
	if raw == nil {
		return domain.Feed{}, false, nil
	}
	var f domain.Feed
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Feed{}, false, fmt.Errorf("decode feed %d: %w", id, err)
	}
	return f, true, nil
}

func putJSON(bucket *bolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bucket.Put(key, raw)
}

func itob(id int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func fingerprintKey(feedID int, fingerprint string) []byte {
	return []byte(fmt.Sprintf("%d/%s", feedID, fingerprint))
}
