package domain

import "time"

// Domain contains the feed and item models shared by the local and upstream sources.

// FeedStatus tells whether a feed is still polled.
type FeedStatus string

const (
	FeedSubscribed   FeedStatus = "Subscribed"
	FeedUnsubscribed FeedStatus = "Unsubscribed"
)

type Feed struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Status        FeedStatus `json:"status"`
	CheckedAt     time.Time  `json:"checked_at"`
	FetchOldItems bool       `json:"fetch_old_items"`
}

type FeedToCreate struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	FetchOldItems bool   `json:"fetch_old_items"`
}

// FeedToUpdate carries a partial update; nil fields are left untouched.
type FeedToUpdate struct {
	ID            int         `json:"id"`
	Title         *string     `json:"title,omitempty"`
	Link          *string     `json:"link,omitempty"`
	Status        *FeedStatus `json:"status,omitempty"`
	CheckedAt     *time.Time  `json:"checked_at,omitempty"`
	FetchOldItems *bool       `json:"fetch_old_items,omitempty"`
}
