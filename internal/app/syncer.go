package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/byfnoel/collie/internal/crawler"
	"github.com/byfnoel/collie/internal/notify"
	"github.com/byfnoel/collie/internal/source"
	"github.com/byfnoel/collie/internal/worker"
	"github.com/byfnoel/collie/pkg/fetcher"
	"github.com/byfnoel/collie/pkg/publishers"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPublisherID = "log"
	fetchMaxTries      = 3
	shutdownTimeout    = 5 * time.Second
)

// Syncer represents the sync runtime. It wires the worker to the selected source,
// the local crawler and the publisher fanout, and serves metrics when configured.
type Syncer struct {
	*Runtime
	fanout *publishers.Fanout
	worker *worker.Worker
}

// NewSyncer builds a sync runtime on top of an open Runtime. The caller keeps
// ownership of rt.
func NewSyncer(ctx context.Context, rt *Runtime) (*Syncer, error) {
	if rt == nil {
		return nil, fmt.Errorf("runtime must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fanout, err := buildFanout(ctx, rt)
	if err != nil {
		return nil, err
	}

	cfg := worker.Config{
		Settings: rt.store,
		Source:   rt.source,
		Notifier: notify.NewNotifier(fanout, rt.log),
		Emitter:  notify.NewEmitter(fanout, rt.log),
		Logger:   rt.log,
		Metrics:  rt.metrics,
	}
	if rt.source.Mode() == source.ModeLocal {
		feeds := fetcher.New(rt.transport, fetcher.WithMaxTries(fetchMaxTries))
		cfg.Producer = crawler.NewService(feeds, rt.store, rt.cfg.FetchConcurrency, rt.log)
	}

	w, err := worker.New(cfg)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("build sync worker: %w", err)
	}

	return &Syncer{Runtime: rt, fanout: fanout, worker: w}, nil
}

// buildFanout loads the publishers file, or falls back to a single log publisher.
func buildFanout(ctx context.Context, rt *Runtime) (*publishers.Fanout, error) {
	if rt.cfg.PublishersFile == "" {
		rt.log.InfoObj("no publishers file configured; logging events only", "publishers_meta", map[string]any{
			"count": 1,
			"ids":   []string{defaultPublisherID},
		})
		return publishers.NewFanout([]publishers.Publisher{
			publishers.NewLogPublisher(defaultPublisherID, rt.log),
		}), nil
	}

	publisherReg, err := publishers.LoadRegistry(rt.cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no publishers enabled in %s", rt.cfg.PublishersFile)
	}

	clients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, rt.log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	rt.log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(clients), nil
}

// Run starts the sync loop, and the metrics endpoint when an address is set, until
// the context is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	if s == nil || s.worker == nil {
		return fmt.Errorf("syncer is not initialized")
	}
	defer s.closeFanout()

	s.log.InfoObj("sync loop starting", "sync_state", map[string]any{
		"mode":             s.worker.Mode(),
		"publishers_count": s.fanout.Size(),
		"metrics_addr":     s.cfg.MetricsAddr,
	})

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              s.cfg.MetricsAddr,
			Handler:           s.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		return s.worker.Run(gctx)
	})

	return g.Wait()
}

// Once performs a single tick and announces its batch.
func (s *Syncer) Once(ctx context.Context) (int, error) {
	if s == nil || s.worker == nil {
		return 0, fmt.Errorf("syncer is not initialized")
	}
	defer s.closeFanout()

	start := time.Now()
	batch := s.worker.Tick(ctx)
	s.worker.Notify(ctx, batch)
	s.log.InfoObj("sync completed", "sync_meta", map[string]any{
		"mode":       s.worker.Mode(),
		"new_items":  len(batch),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return len(batch), nil
}

func (s *Syncer) metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Syncer) closeFanout() {
	if err := s.fanout.Close(); err != nil {
		s.log.ErrorObj("publisher close failed", "error", err)
	}
}
