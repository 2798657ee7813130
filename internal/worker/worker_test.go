package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/notify"
	"github.com/byfnoel/collie/internal/source"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/byfnoel/collie/internal/telemetry"
	"github.com/byfnoel/collie/pkg/publishers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(offset int) time.Time { return base.Add(time.Duration(offset) * time.Minute) }

type mapSettings struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newSettings(kv ...string) *mapSettings {
	s := &mapSettings{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.values[kv[i]] = kv[i+1]
	}
	return s
}

func (s *mapSettings) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapSettings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *mapSettings) watermark(t *testing.T) (time.Time, bool) {
	t.Helper()
	wm, ok, err := storage.LastSyncTime(s)
	require.NoError(t, err)
	return wm, ok
}

// scriptedSource answers ReadAllItems from a queue of canned responses.
type scriptedSource struct {
	source.Source
	mode      source.Mode
	responses [][]domain.Item
	errs      []error
	calls     int
	lastOpt   domain.ItemReadOption
}

func (s *scriptedSource) Mode() source.Mode { return s.mode }

func (s *scriptedSource) ReadAllItems(_ context.Context, opt domain.ItemReadOption) ([]domain.Item, error) {
	i := s.calls
	s.calls++
	s.lastOpt = opt
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, nil
}

func upstreamItems(offsets ...int) []domain.Item {
	out := make([]domain.Item, 0, len(offsets))
	for i, off := range offsets {
		out = append(out, domain.Item{
			ID:          i + 1,
			Title:       fmt.Sprintf("item %+d", off),
			Description: "<p>body</p>",
			Link:        fmt.Sprintf("https://example.com/%d", i),
			Status:      domain.ItemUnread,
			PublishedAt: at(off),
			Feed:        domain.ItemFeed{ID: 4, Title: "Example"},
		})
	}
	return out
}

type producerFunc func(ctx context.Context) ([]domain.ItemToCreate, error)

func (f producerFunc) Fetch(ctx context.Context) ([]domain.ItemToCreate, error) { return f(ctx) }

type countingNotifier struct{ batches [][]domain.ItemToCreate }

func (n *countingNotifier) Notify(_ context.Context, batch []domain.ItemToCreate) error {
	n.batches = append(n.batches, batch)
	return nil
}

type countingEmitter struct{ calls int }

func (e *countingEmitter) FeedUpdated(context.Context) error {
	e.calls++
	return nil
}

type recordingSink struct{ events []publishers.Event }

func (r *recordingSink) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.events = append(r.events, evt)
	return 1, nil
}

func newUpstreamWorker(t *testing.T, settings *mapSettings, src *scriptedSource) *Worker {
	t.Helper()
	src.mode = source.ModeUpstream
	w, err := New(Config{Settings: settings, Source: src})
	require.NoError(t, err)
	return w
}

func titles(batch []domain.ItemToCreate) []string {
	out := make([]string, 0, len(batch))
	for _, it := range batch {
		out = append(out, it.Title)
	}
	return out
}

func TestNewValidatesCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Source: &scriptedSource{mode: source.ModeUpstream}})
	assert.Error(t, err)

	_, err = New(Config{Settings: newSettings()})
	assert.Error(t, err)

	_, err = New(Config{Settings: newSettings(), Source: &scriptedSource{mode: source.ModeLocal}})
	assert.Error(t, err, "local mode needs a producer")

	w, err := New(Config{Settings: newSettings(), Source: &scriptedSource{mode: source.ModeUpstream}})
	require.NoError(t, err)
	assert.Equal(t, source.ModeUpstream, w.Mode())
}

func TestTickKeepsOnlyItemsAfterWatermark(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	require.NoError(t, storage.SetLastSyncTime(settings, at(0)))
	src := &scriptedSource{responses: [][]domain.Item{upstreamItems(-1, 0, 1, 5)}}
	w := newUpstreamWorker(t, settings, src)

	batch := w.Tick(context.Background())

	assert.Equal(t, []string{"item +1", "item +5"}, titles(batch))
	require.NotNil(t, src.lastOpt.Status)
	assert.Equal(t, domain.ItemUnread, *src.lastOpt.Status)

	wm, ok := settings.watermark(t)
	require.True(t, ok)
	assert.True(t, wm.Equal(at(5)), "watermark %s", wm)
}

func TestTickBootstrapsWithoutWatermark(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	src := &scriptedSource{responses: [][]domain.Item{upstreamItems(3, -2, 7)}}
	w := newUpstreamWorker(t, settings, src)

	batch := w.Tick(context.Background())
	assert.Len(t, batch, 3)

	wm, ok := settings.watermark(t)
	require.True(t, ok)
	assert.True(t, wm.Equal(at(7)))
}

func TestTickTranslatesItems(t *testing.T) {
	t.Parallel()

	author := "Ada"
	item := upstreamItems(1)[0]
	item.Author = &author

	w := newUpstreamWorker(t, newSettings(), &scriptedSource{responses: [][]domain.Item{{item}}})
	batch := w.Tick(context.Background())

	require.Len(t, batch, 1)
	assert.Equal(t, domain.ItemToCreate{
		Author:      &author,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Status:      domain.ItemUnread,
		PublishedAt: item.PublishedAt,
		Feed:        4,
	}, batch[0])
}

func TestWatermarkNeverDecreases(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	src := &scriptedSource{responses: [][]domain.Item{
		upstreamItems(1, 3),
		upstreamItems(2),
		{},
		upstreamItems(2, 7, 4),
		upstreamItems(6, 7),
	}}
	w := newUpstreamWorker(t, settings, src)

	wantCounts := []int{2, 0, 0, 2, 0}
	wantMarks := []int{3, 3, 3, 7, 7}
	for i := range wantCounts {
		batch := w.Tick(context.Background())
		assert.Len(t, batch, wantCounts[i], "tick %d", i+1)

		wm, ok := settings.watermark(t)
		require.True(t, ok, "tick %d", i+1)
		assert.True(t, wm.Equal(at(wantMarks[i])), "tick %d watermark %s", i+1, wm)
	}
}

func TestTickSurvivesReadFailure(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	require.NoError(t, storage.SetLastSyncTime(settings, at(0)))
	metrics := telemetry.NewMetrics()

	src := &scriptedSource{
		mode:      source.ModeUpstream,
		errs:      []error{errors.New("connection refused")},
		responses: [][]domain.Item{nil, upstreamItems(2)},
	}
	w, err := New(Config{Settings: settings, Source: src, Metrics: metrics})
	require.NoError(t, err)

	assert.Empty(t, w.Tick(context.Background()))
	wm, _ := settings.watermark(t)
	assert.True(t, wm.Equal(at(0)), "failed tick leaves the watermark alone")

	assert.Len(t, w.Tick(context.Background()), 1)
	wm, _ = settings.watermark(t)
	assert.True(t, wm.Equal(at(2)))

	expected := `
# HELP collie_sync_ticks_total Sync worker ticks by source mode and result.
# TYPE collie_sync_ticks_total counter
collie_sync_ticks_total{mode="upstream",result="error"} 1
collie_sync_ticks_total{mode="upstream",result="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "collie_sync_ticks_total"))
}

func TestTickReportsBatchWhenWatermarkWriteFails(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	settings.setErr = errors.New("disk full")
	w := newUpstreamWorker(t, settings, &scriptedSource{responses: [][]domain.Item{upstreamItems(1, 2)}})

	assert.Len(t, w.Tick(context.Background()), 2)
	_, ok := settings.watermark(t)
	assert.False(t, ok)
}

func TestTickLocalModeUsesProducer(t *testing.T) {
	t.Parallel()

	want := []domain.ItemToCreate{{Title: "local", Feed: 1}}
	src := &scriptedSource{mode: source.ModeLocal}
	w, err := New(Config{
		Settings: newSettings(),
		Source:   src,
		Producer: producerFunc(func(context.Context) ([]domain.ItemToCreate, error) { return want, nil }),
	})
	require.NoError(t, err)

	assert.Equal(t, want, w.Tick(context.Background()))
	assert.Zero(t, src.calls, "local mode never reads items through the source")
}

func TestNotifyGating(t *testing.T) {
	t.Parallel()

	batch := []domain.ItemToCreate{{Title: "one"}}
	cases := []struct {
		name         string
		setting      []string
		batch        []domain.ItemToCreate
		wantEmits    int
		wantNotifies int
	}{
		{name: "empty batch", batch: nil},
		{name: "default enabled", batch: batch, wantEmits: 1, wantNotifies: 1},
		{name: "disabled", setting: []string{storage.KeyNotification, "false"}, batch: batch, wantEmits: 1},
		{name: "garbage means enabled", setting: []string{storage.KeyNotification, "maybe"}, batch: batch, wantEmits: 1, wantNotifies: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifier := &countingNotifier{}
			emitter := &countingEmitter{}
			w, err := New(Config{
				Settings: newSettings(tc.setting...),
				Source:   &scriptedSource{mode: source.ModeUpstream},
				Notifier: notifier,
				Emitter:  emitter,
			})
			require.NoError(t, err)

			w.Notify(context.Background(), tc.batch)
			assert.Equal(t, tc.wantEmits, emitter.calls)
			assert.Len(t, notifier.batches, tc.wantNotifies)
		})
	}
}

func TestNotifyBatchingThroughNotifier(t *testing.T) {
	t.Parallel()

	for size, wantEvents := range map[int]int{0: 0, 1: 1, 3: 3, 4: 1, 10: 1} {
		sink := &recordingSink{}
		emitter := &countingEmitter{}
		w, err := New(Config{
			Settings: newSettings(),
			Source:   &scriptedSource{mode: source.ModeUpstream},
			Notifier: notify.NewNotifier(sink, nil),
			Emitter:  emitter,
		})
		require.NoError(t, err)

		batch := make([]domain.ItemToCreate, size)
		for i := range batch {
			batch[i] = domain.ItemToCreate{Title: fmt.Sprintf("t%d", i)}
		}
		w.Notify(context.Background(), batch)

		assert.Len(t, sink.events, wantEvents, "batch of %d", size)
		if size == 0 {
			assert.Zero(t, emitter.calls)
		}
	}
}

func TestRunLoopsUntilCancelledDuringSleep(t *testing.T) {
	t.Parallel()

	settings := newSettings()
	notifier := &countingNotifier{}
	ticks := 0
	producer := producerFunc(func(ctx context.Context) ([]domain.ItemToCreate, error) {
		ticks++
		require.NoError(t, ctx.Err(), "ticks run uncancelled")
		if ticks == 1 {
			return []domain.ItemToCreate{{Title: "first"}}, nil
		}
		return nil, errors.New("feed host unreachable")
	})

	w, err := New(Config{
		Settings: settings,
		Source:   &scriptedSource{mode: source.ModeLocal},
		Producer: producer,
		Notifier: notifier,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		switch len(slept) {
		case 1:
			// picked up by the next sleep, not this one
			require.NoError(t, settings.Set(storage.KeyPollingFrequency, "10"))
			return nil
		default:
			cancel()
			return ctx.Err()
		}
	}

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 2, ticks)
	assert.Equal(t, []time.Duration{storage.DefaultPollingFrequency, 10 * time.Second}, slept)
	assert.Len(t, notifier.batches, 1)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
