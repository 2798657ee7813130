// Package fetcher downloads syndication feeds (RSS, Atom, JSON Feed) and normalizes their entries.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/byfnoel/collie/pkg/httpclient"
	"github.com/cenkalti/backoff/v5"
	"github.com/mmcdole/gofeed"
)

const (
	defaultMaxTries  = 3
	defaultUserAgent = "collie/1.0 (+https://github.com/byfnoel/collie)"
)

// Entry is one normalized feed entry.
type Entry struct {
	GUID        string
	Author      *string
	Title       string
	Description string
	Link        string
	// PublishedAt falls back to the updated date; zero when the feed carries neither.
	PublishedAt time.Time
}

// Feed is a parsed feed document.
type Feed struct {
	Title   string
	Link    string
	Entries []Entry
}

// StatusError is a non-2xx answer from a feed host.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d body: %s", e.URL, e.Status, e.Body)
}

// Fetcher downloads and parses feeds over a shared httpclient.Client.
type Fetcher struct {
	client     httpclient.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	headers    map[string]string
}

type Option func(*Fetcher)

// WithMaxTries bounds download attempts per feed; values below 1 are ignored.
func WithMaxTries(n uint) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxTries = n
		}
	}
}

// WithBackOff replaces the exponential retry policy.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.newBackOff = fn
		}
	}
}

func New(client httpclient.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	f := &Fetcher{
		client:   client,
		maxTries: defaultMaxTries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		headers: map[string]string{
			"User-Agent": defaultUserAgent,
			"Accept":     "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8",
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch downloads url and parses it. Transport failures, 429 and 5xx are retried;
// other statuses and parse failures are not.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("feed url is empty")
	}

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return f.download(ctx, url)
	}, backoff.WithBackOff(f.newBackOff()), backoff.WithMaxTries(f.maxTries))
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return normalize(parsed), nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url, f.headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return resp.Body(), nil
	}
	serr := &StatusError{URL: url, Status: status, Body: responseSnippet(resp.Body())}
	if status == http.StatusTooManyRequests || status >= 500 {
		return nil, serr
	}
	return nil, backoff.Permanent(serr)
}

func normalize(in *gofeed.Feed) *Feed {
	out := &Feed{
		Title:   strings.TrimSpace(in.Title),
		Link:    strings.TrimSpace(in.Link),
		Entries: make([]Entry, 0, len(in.Items)),
	}
	for _, item := range in.Items {
		if item == nil {
			continue
		}
		out.Entries = append(out.Entries, Entry{
			GUID:        itemID(item),
			Author:      itemAuthor(item),
			Title:       strings.TrimSpace(item.Title),
			Description: itemDescription(item),
			Link:        strings.TrimSpace(item.Link),
			PublishedAt: itemPublishedTime(item),
		})
	}
	return out
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}

func itemID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

func itemAuthor(item *gofeed.Item) *string {
	candidates := make([]*gofeed.Person, 0, 1+len(item.Authors))
	candidates = append(candidates, item.Author)
	candidates = append(candidates, item.Authors...)
	for _, p := range candidates {
		if p == nil {
			continue
		}
		if name := strings.TrimSpace(p.Name); name != "" {
			return &name
		}
	}
	return nil
}

func itemDescription(item *gofeed.Item) string {
	if d := strings.TrimSpace(item.Description); d != "" {
		return d
	}
	return strings.TrimSpace(item.Content)
}

func responseSnippet(body []byte) string {
	const maxLen = 256
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
