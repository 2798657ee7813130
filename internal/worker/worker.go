// Package worker runs the background sync loop: pull new items, advance the
// watermark, announce the batch, sleep, repeat.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/internal/logger"
	"github.com/byfnoel/collie/internal/source"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/byfnoel/collie/internal/telemetry"
)

// LocalProducer crawls subscribed feeds and returns what it stored. It keeps its
// own per-feed watermark.
type LocalProducer interface {
	Fetch(ctx context.Context) ([]domain.ItemToCreate, error)
}

// NotificationSink shows a batch of new items to the user.
type NotificationSink interface {
	Notify(ctx context.Context, batch []domain.ItemToCreate) error
}

// UIEmitter fires the payload-less feed updated signal.
type UIEmitter interface {
	FeedUpdated(ctx context.Context) error
}

// Config carries the worker collaborators. Source decides the mode; Producer is
// required only in local mode.
type Config struct {
	Settings storage.Settings
	Source   source.Source
	Producer LocalProducer
	Notifier NotificationSink
	Emitter  UIEmitter
	Logger   logger.Logger
	Metrics  *telemetry.Metrics
}

// Worker is the single writer of the sync watermark.
type Worker struct {
	mode     source.Mode
	settings storage.Settings
	items    source.Source
	producer LocalProducer
	notifier NotificationSink
	emitter  UIEmitter
	log      logger.Logger
	metrics  *telemetry.Metrics

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) (*Worker, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings store must not be nil")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	mode := cfg.Source.Mode()
	if mode == source.ModeLocal && cfg.Producer == nil {
		return nil, fmt.Errorf("local mode requires a producer")
	}

	return &Worker{
		mode:     mode,
		settings: cfg.Settings,
		items:    cfg.Source,
		producer: cfg.Producer,
		notifier: cfg.Notifier,
		emitter:  cfg.Emitter,
		log:      logger.Ensure(cfg.Logger),
		metrics:  cfg.Metrics,
		sleep:    sleepContext,
	}, nil
}

func (w *Worker) Mode() source.Mode { return w.mode }

// Run loops until ctx is cancelled. Only the sleep between ticks observes the
// cancellation; a tick in flight always completes.
func (w *Worker) Run(ctx context.Context) error {
	w.log.InfoObj("sync worker starting", "sync_state", map[string]any{
		"mode": w.mode,
	})

	for {
		tickCtx := context.WithoutCancel(ctx)
		batch := w.Tick(tickCtx)
		w.Notify(tickCtx, batch)

		interval, err := storage.PollingInterval(w.settings)
		if err != nil {
			w.log.WarnObj("polling interval unreadable; using default", "error", err.Error())
		}
		if err := w.sleep(ctx, interval); err != nil {
			w.log.InfoObj("sync worker exiting", "reason", err.Error())
			return nil
		}
	}
}

// Tick pulls the items that are new since the previous tick. Failures are logged
// and reported as an empty batch.
func (w *Worker) Tick(ctx context.Context) []domain.ItemToCreate {
	start := time.Now()

	var (
		batch []domain.ItemToCreate
		err   error
	)
	if w.mode == source.ModeUpstream {
		batch, err = w.pullUpstream(ctx)
	} else {
		batch, err = w.producer.Fetch(ctx)
	}
	w.metrics.RecordTick(string(w.mode), err == nil, len(batch), time.Since(start))

	if err != nil {
		w.log.ErrorObj("sync tick failed", "sync_error", map[string]any{
			"mode":  w.mode,
			"error": err.Error(),
		})
		return nil
	}

	w.log.DebugObj("sync tick completed", "sync_meta", map[string]any{
		"mode":       w.mode,
		"new_items":  len(batch),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return batch
}

// pullUpstream keeps unread items published strictly after the watermark. When
// anything is kept, the watermark moves to the newest timestamp of the whole
// response, which never lies below a kept item.
func (w *Worker) pullUpstream(ctx context.Context) ([]domain.ItemToCreate, error) {
	watermark, hasWatermark, err := storage.LastSyncTime(w.settings)
	if err != nil {
		w.log.WarnObj("sync watermark unreadable; treating as unset", "error", err.Error())
		hasWatermark = false
	}

	unread := domain.ItemUnread
	items, err := w.items.ReadAllItems(ctx, domain.ItemReadOption{Status: &unread})
	if err != nil {
		return nil, fmt.Errorf("read unread items: %w", err)
	}

	var (
		batch  []domain.ItemToCreate
		newest time.Time
	)
	for _, item := range items {
		if item.PublishedAt.After(newest) {
			newest = item.PublishedAt
		}
		if hasWatermark && !item.PublishedAt.After(watermark) {
			continue
		}
		batch = append(batch, item.ToCreate())
	}

	if len(batch) == 0 {
		return nil, nil
	}
	if err := storage.SetLastSyncTime(w.settings, newest); err != nil {
		w.log.ErrorObj("persist sync watermark failed", "error", err.Error())
	} else {
		w.metrics.RecordWatermark(newest)
	}
	return batch, nil
}

// Notify refreshes the UI and, when enabled, notifies the user about a non-empty batch.
func (w *Worker) Notify(ctx context.Context, batch []domain.ItemToCreate) {
	if len(batch) == 0 {
		return
	}

	if w.emitter != nil {
		if err := w.emitter.FeedUpdated(ctx); err != nil {
			w.log.WarnObj("feed updated signal failed", "error", err.Error())
		}
	}

	enabled, err := storage.NotificationsEnabled(w.settings)
	if err != nil {
		w.log.WarnObj("notification preference unreadable; using default", "error", err.Error())
	}
	if !enabled || w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, batch); err != nil {
		w.log.WarnObj("notification delivery failed", "error", err.Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
