package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic fingerprint
	"encoding/hex"
	"strings"
	"time"
)

type ItemStatus string

const (
	ItemUnread ItemStatus = "Unread"
	ItemRead   ItemStatus = "Read"
)

type ItemOrder string

const (
	OrderPublishedDateDesc ItemOrder = "PublishedDateDesc"
	OrderPublishedDateAsc  ItemOrder = "PublishedDateAsc"
)

// ItemFeed is the owning feed reference embedded in an item.
type ItemFeed struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Item struct {
	ID          int        `json:"id"`
	Fingerprint string     `json:"fingerprint"`
	Author      *string    `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Status      ItemStatus `json:"status"`
	IsSaved     bool       `json:"is_saved"`
	PublishedAt time.Time  `json:"published_at"`
	Feed        ItemFeed   `json:"feed"`
}

// ItemToCreate is a newly discovered item ready to be stored or announced.
type ItemToCreate struct {
	Author      *string    `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Status      ItemStatus `json:"status"`
	PublishedAt time.Time  `json:"published_at"`
	Feed        int        `json:"feed"`
	// GUID is the source's entry id. Local dedupe only; never sent upstream.
	GUID string `json:"-"`
}

// Fingerprint identifies an item within its feed independently of storage ids.
func (i ItemToCreate) Fingerprint() string {
	key := "guid\x00" + i.GUID
	if i.GUID == "" {
		key = strings.Join([]string{i.Title, i.Description, i.Link}, "\x00")
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

type ItemToUpdate struct {
	ID      int         `json:"id"`
	Status  *ItemStatus `json:"status,omitempty"`
	IsSaved *bool       `json:"is_saved,omitempty"`
}

type ItemToUpdateAll struct {
	IDs     []int       `json:"ids,omitempty"`
	Status  *ItemStatus `json:"status,omitempty"`
	IsSaved *bool       `json:"is_saved,omitempty"`
}

// ItemReadOption is the filter/sort/pagination set for item reads.
type ItemReadOption struct {
	IDs     []int       `json:"ids"`
	Feed    *int        `json:"feed"`
	Status  *ItemStatus `json:"status"`
	IsSaved *bool       `json:"is_saved"`
	OrderBy *ItemOrder  `json:"order_by"`
	Limit   *int        `json:"limit"`
	Offset  *int        `json:"offset"`
}

// ToCreate converts a stored item back into its creation record.
func (i Item) ToCreate() ItemToCreate {
	return ItemToCreate{
		Author:      i.Author,
		Title:       i.Title,
		Description: i.Description,
		Link:        i.Link,
		Status:      i.Status,
		PublishedAt: i.PublishedAt,
		Feed:        i.Feed.ID,
	}
}
