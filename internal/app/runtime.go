package app

import (
	"errors"
	"fmt"

	"github.com/byfnoel/collie/internal/config"
	"github.com/byfnoel/collie/internal/logger"
	"github.com/byfnoel/collie/internal/source"
	"github.com/byfnoel/collie/internal/storage"
	"github.com/byfnoel/collie/internal/telemetry"
	"github.com/byfnoel/collie/internal/upstream"
	"github.com/byfnoel/collie/pkg/httpclient"
)

const userAgent = "collie/1.0"

// Runtime owns the store, the shared HTTP transport and token cache, and the
// source selected from the stored settings.
type Runtime struct {
	cfg       *config.Config
	log       logger.Logger
	store     storage.Store
	transport httpclient.Client
	tokens    *upstream.TokenCache
	metrics   *telemetry.Metrics
	source    source.Source
}

// RuntimeOption tweaks source selection.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	localFallback bool
}

// WithLocalFallback runs against the local library when the upstream URL is set but
// the credentials are incomplete. Without it that configuration is an error.
func WithLocalFallback() RuntimeOption {
	return func(o *runtimeOptions) { o.localFallback = true }
}

// NewRuntime opens storage and selects the local or upstream source.
func NewRuntime(cfg *config.Config, log logger.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	var o runtimeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	proxy, err := storage.Proxy(store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("read proxy setting: %w", err)
	}
	transport := httpclient.NewRestyClient(cfg.HTTPTimeout,
		httpclient.WithProxy(proxy),
		httpclient.WithUserAgent(userAgent),
	)

	metrics := telemetry.NewMetrics()
	tokens := upstream.NewTokenCache(metrics)

	src, err := source.Select(store, store, tokens, transport,
		upstream.WithLogger(log),
		upstream.WithMetrics(metrics),
	)
	if errors.Is(err, upstream.ErrConfigurationMissing) && o.localFallback {
		log.WarnObj("upstream credentials incomplete; syncing the local library", "error", err.Error())
		src, err = source.NewLocal(store), nil
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("select source: %w", err)
	}
	log.InfoObj("source selected", "source_meta", map[string]any{
		"mode":          src.Mode(),
		"proxy":         proxy != "",
		"http_timeout":  cfg.HTTPTimeout.String(),
		"fetch_workers": cfg.FetchConcurrency,
	})

	return &Runtime{
		cfg:       cfg,
		log:       log,
		store:     store,
		transport: transport,
		tokens:    tokens,
		metrics:   metrics,
		source:    src,
	}, nil
}

func (r *Runtime) Source() source.Source      { return r.source }
func (r *Runtime) Settings() storage.Settings { return r.store }

// Close safely closes the storage backend, logging any errors encountered.
func (r *Runtime) Close() {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err)
	}
}
