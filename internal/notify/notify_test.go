package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/pkg/publishers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []publishers.Event
	err    error
}

func (r *recordingSink) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.events = append(r.events, evt)
	if r.err != nil {
		return 0, r.err
	}
	return 1, nil
}

func batchOf(n int) []domain.ItemToCreate {
	out := make([]domain.ItemToCreate, n)
	for i := range out {
		out[i] = domain.ItemToCreate{
			Title:       fmt.Sprintf("item %d", i),
			Description: fmt.Sprintf("<p>body <em>%d</em></p>", i),
		}
	}
	return out
}

func TestMessagesBatchingRule(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 6; n++ {
		msgs := Messages(batchOf(n))
		switch {
		case n == 0:
			assert.Empty(t, msgs)
		case n <= SummaryThreshold:
			require.Len(t, msgs, n, "n=%d", n)
			assert.Equal(t, "item 0", msgs[0].Title)
			assert.Equal(t, "body 0", msgs[0].Body)
		default:
			require.Len(t, msgs, 1, "n=%d", n)
			assert.Equal(t, "New items arrived", msgs[0].Title)
			assert.Equal(t, fmt.Sprintf("There are %d items to read", n), msgs[0].Body)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"plain   text\n here":                   "plain text here",
		"<p>Hello <b>world</b></p><p>again</p>": "Hello worldagain",
		"Tom &amp; Jerry":                       "Tom & Jerry",
		`<div>kept <a href="#">link</a></div>`:  "kept link",
		"":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripMarkup(in), in)
	}
}

func TestNotifierPublishesOneEventPerMessage(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	n := NewNotifier(sink, nil)

	require.NoError(t, n.Notify(context.Background(), batchOf(2)))
	require.Len(t, sink.events, 2)
	for _, evt := range sink.events {
		assert.Equal(t, publishers.KindNotification, evt.Kind)
		assert.Equal(t, 1, evt.Count)
		assert.NotEmpty(t, evt.ID)
	}

	sink.events = nil
	require.NoError(t, n.Notify(context.Background(), batchOf(5)))
	require.Len(t, sink.events, 1)
	assert.Equal(t, 5, sink.events[0].Count)

	sink.events = nil
	require.NoError(t, n.Notify(context.Background(), nil))
	assert.Empty(t, sink.events)
}

func TestNotifierSurfacesSinkErrors(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{err: errors.New("down")}
	err := NewNotifier(sink, nil).Notify(context.Background(), batchOf(2))
	assert.Error(t, err)
	assert.Len(t, sink.events, 2)
}

func TestEmitterFeedUpdated(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	require.NoError(t, NewEmitter(sink, nil).FeedUpdated(context.Background()))
	require.Len(t, sink.events, 1)
	assert.Equal(t, "feed_updated", sink.events[0].Kind)
	assert.Empty(t, sink.events[0].Title)

	assert.NoError(t, NewEmitter(nil, nil).FeedUpdated(context.Background()))
}
