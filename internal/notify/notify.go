// Package notify turns sync results into notification and UI events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/logger"
	"github.com/byfnoel/collie/pkg/publishers"
)

// SummaryThreshold is the largest batch announced item by item.
const SummaryThreshold = 3

const summaryTitle = "New items arrived"

// Sink delivers events; *publishers.Fanout satisfies it.
type Sink interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Message is one rendered notification.
type Message struct {
	Title string
	Body  string
}

// Messages renders a batch: one message per item up to SummaryThreshold, a single
// summary above it, nothing for an empty batch.
func Messages(batch []domain.ItemToCreate) []Message {
	switch {
	case len(batch) == 0:
		return nil
	case len(batch) > SummaryThreshold:
		return []Message{{
			Title: summaryTitle,
			Body:  fmt.Sprintf("There are %d items to read", len(batch)),
		}}
	}

	out := make([]Message, 0, len(batch))
	for _, item := range batch {
		out = append(out, Message{Title: item.Title, Body: StripMarkup(item.Description)})
	}
	return out
}

// StripMarkup returns the visible text of an HTML fragment with whitespace collapsed.
func StripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Notifier hands new-item batches to the configured sinks.
type Notifier struct {
	sink Sink
	log  logger.Logger
}

func NewNotifier(sink Sink, log logger.Logger) *Notifier {
	return &Notifier{sink: sink, log: logger.Ensure(log)}
}

func (n *Notifier) Notify(ctx context.Context, batch []domain.ItemToCreate) error {
	msgs := Messages(batch)
	if len(msgs) == 0 || n.sink == nil {
		return nil
	}

	count := 1
	if len(batch) > SummaryThreshold {
		count = len(batch)
	}

	var errs []error
	for _, m := range msgs {
		evt := publishers.NewEvent(publishers.KindNotification, m.Title, m.Body, count)
		delivered, err := n.sink.Publish(ctx, evt)
		if err != nil {
			errs = append(errs, err)
		}
		n.log.DebugObj("notification dispatched", "notification", map[string]any{
			"event_id":  evt.ID,
			"title":     m.Title,
			"delivered": delivered,
		})
	}
	return errors.Join(errs...)
}

// Emitter signals front ends that feed contents changed.
type Emitter struct {
	sink Sink
	log  logger.Logger
}

func NewEmitter(sink Sink, log logger.Logger) *Emitter {
	return &Emitter{sink: sink, log: logger.Ensure(log)}
}

// FeedUpdated publishes a payload-less feed_updated event.
func (e *Emitter) FeedUpdated(ctx context.Context) error {
	if e.sink == nil {
		return nil
	}
	evt := publishers.NewEvent(publishers.KindFeedUpdated, "", "", 0)
	if _, err := e.sink.Publish(ctx, evt); err != nil {
		return fmt.Errorf("emit %s: %w", publishers.KindFeedUpdated, err)
	}
	return nil
}
