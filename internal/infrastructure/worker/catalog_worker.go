package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// InvalidationSource delivers catalog invalidations from other instances
type InvalidationSource interface {
	Listen(ctx context.Context, onInvalidate func(ctx context.Context) error) error
}

// CatalogLoader reloads the local status catalog
type CatalogLoader interface {
	Load(ctx context.Context) error
}

// CatalogInvalidationWorker reloads the local catalog whenever another
// instance refreshes it. A dropped subscription is re-established with
// exponential backoff.
type CatalogInvalidationWorker struct {
	source  InvalidationSource
	catalog CatalogLoader
	logger  *zap.Logger

	maxBackoff time.Duration

	loop
}

// NewCatalogInvalidationWorker creates a new invalidation subscriber
func NewCatalogInvalidationWorker(source InvalidationSource, catalog CatalogLoader, logger *zap.Logger) *CatalogInvalidationWorker {
	return &CatalogInvalidationWorker{
		source:     source,
		catalog:    catalog,
		logger:     logger,
		maxBackoff: 30 * time.Second,
	}
}

// Name returns the worker name for identification
func (w *CatalogInvalidationWorker) Name() string {
	return "CatalogInvalidationWorker"
}

// Start subscribes in the background
func (w *CatalogInvalidationWorker) Start(ctx context.Context) error {
	return w.loop.start(ctx, w.Name(), w.listenLoop)
}

// Stop unsubscribes and waits for the listener to exit
func (w *CatalogInvalidationWorker) Stop() error {
	w.loop.stop()
	return nil
}

func (w *CatalogInvalidationWorker) listenLoop(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = w.maxBackoff

	for {
		err := w.source.Listen(ctx, w.reload)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		w.logger.Warn("Catalog invalidation subscription dropped",
			zap.Error(err),
			zap.Duration("retry_in", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (w *CatalogInvalidationWorker) reload(ctx context.Context) error {
	if err := w.catalog.Load(ctx); err != nil {
		return err
	}
	w.logger.Info("Status catalog reloaded after remote invalidation")
	return nil
}
