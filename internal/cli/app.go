package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanglvm/ric/internal/config"
	"github.com/khanglvm/ric/internal/learning"
	"github.com/khanglvm/ric/internal/logging"
	"github.com/khanglvm/ric/internal/metrics"
	"github.com/khanglvm/ric/internal/storage"
	"github.com/khanglvm/ric/internal/tracing"
	"github.com/khanglvm/ric/internal/version"
)

// app bundles what a command needs after bootstrap.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	shutdown func(context.Context) error
}

// loadApp loads configuration, applies the global flag overrides, validates
// everything but the store section and builds the logger. The store section
// is checked by openStore.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString(flagConfig)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString(flagLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if backend, _ := cmd.Flags().GetString(flagStore); backend != "" {
		cfg.Store.Backend = backend
	}

	if err := cfg.ValidateOffline(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	shutdown, err := tracing.Init(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceVersion: version.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.Store.MaxQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Store.MaxQPS), cfg.Store.Burst)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New(),
		limiter:  limiter,
		shutdown: shutdown,
	}, nil
}

// openStore connects to the configured graph store.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	if err := a.cfg.ValidateStore(); err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, a.cfg.StoreOptions(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", a.cfg.Store.Backend, err)
	}
	return store, nil
}

// newScorer builds a confidence scorer over store with the given cap.
func (a *app) newScorer(store storage.GraphStore, limit int) (*learning.ConfidenceScorer, error) {
	return learning.NewConfidenceScorer(store,
		learning.WithScoreLimit(limit),
		learning.WithRateLimiter(a.limiter),
		learning.WithScorerLogger(a.logger),
		learning.WithScorerMetrics(a.metrics),
	)
}

// close flushes pending spans and the logger.
func (a *app) close() {
	if err := a.shutdown(context.Background()); err != nil {
		a.logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// closeStore closes store, logging any error.
func (a *app) closeStore(ctx context.Context, store storage.Store) {
	if err := store.Close(ctx); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
}
