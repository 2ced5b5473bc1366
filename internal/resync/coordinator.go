package resync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/recipeshelf/import-service/internal/registry"
)

// Starter hands a registered job to the orchestrator
type Starter interface {
	Start(ctx context.Context, jobID string)
}

// CollectionCreator creates a named collection for a user
type CollectionCreator interface {
	CreateCollection(ctx context.Context, userID, name string) (string, error)
}

// Coordinator drains externally queued pending imports into the
// orchestrator on service start, on demand, and on an optional interval
type Coordinator struct {
	queue    Queue
	registry *registry.Registry
	starter  Starter
	store    CollectionCreator
	logger   *slog.Logger

	draining atomic.Bool
}

// NewCoordinator creates a resync coordinator
func NewCoordinator(queue Queue, reg *registry.Registry, starter Starter, store CollectionCreator, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		queue:    queue,
		registry: reg,
		starter:  starter,
		store:    store,
		logger:   logger,
	}
}

// Drain hands every queued pending import to the orchestrator, then clears
// exactly the entries it read. Re-entrant calls while a drain is in
// progress return immediately; the queue is cleared only after every item
// has been handed off, so an interrupted drain is retried in full.
func (c *Coordinator) Drain(ctx context.Context) (int, error) {
	if !c.draining.CompareAndSwap(false, true) {
		c.logger.Debug("Resync already in progress, skipping")
		return 0, nil
	}
	defer c.draining.Store(false)

	items, total, err := c.queue.Items(ctx)
	if err != nil {
		return 0, err
	}

	if total == 0 {
		return 0, nil
	}

	c.logger.Info("Draining pending imports",
		slog.Int("count", len(items)),
	)

	for _, item := range items {
		collectionID := item.CollectionID
		collectionName := ""

		// A brand-new named collection is created up front. Failure is
		// tolerated; the import proceeds without a collection.
		if item.NewCollectionName != "" {
			id, err := c.store.CreateCollection(ctx, item.UserID, item.NewCollectionName)
			if err != nil {
				c.logger.Warn("Failed to create collection for pending import",
					slog.String("name", item.NewCollectionName),
					slog.Any("error", err),
				)
			} else {
				collectionID = id
				collectionName = item.NewCollectionName
			}
		}

		jobID := c.registry.Add(item.URL, item.UserID, collectionID, collectionName)
		c.starter.Start(ctx, jobID)

		c.logger.Info("Pending import handed to orchestrator",
			slog.String("job_id", jobID),
			slog.String("url", item.URL),
		)
	}

	if err := c.queue.Trim(ctx, total); err != nil {
		c.logger.Error("Failed to clear pending import queue",
			slog.Any("error", err),
		)
		return len(items), err
	}

	return len(items), nil
}

// Run drains immediately and then on every tick until ctx is canceled.
// A zero interval drains once and returns.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	if _, err := c.Drain(ctx); err != nil {
		c.logger.Error("Initial resync failed",
			slog.Any("error", err),
		)
	}

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Drain(ctx); err != nil {
				c.logger.Error("Resync failed",
					slog.Any("error", err),
				)
			}
		}
	}
}
