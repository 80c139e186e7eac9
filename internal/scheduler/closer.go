package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/query-routing-service/internal/config"
	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/observability"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

const closerJob = "staleness_closer"

// StalenessCloser force-completes queries inactive beyond the retention
// window. The response text is never touched, so a force-closed query stays
// distinguishable from an answered one by its nil response.
type StalenessCloser struct {
	queries    QueryStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SchedulerConfig
}

// NewStalenessCloser constructs the scheduler.
func NewStalenessCloser(queries QueryStore, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.SchedulerConfig) *StalenessCloser {
	return &StalenessCloser{
		queries:    queries,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run ticks until the context is cancelled.
func (c *StalenessCloser) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CloseInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single closure pass with per-query error isolation.
func (c *StalenessCloser) RunOnce(ctx context.Context) {
	updatedBefore := time.Now().Add(-c.cfg.Retention())
	stale, err := c.queries.ListStale(ctx, updatedBefore)
	if err != nil {
		c.logger.Error("stale query selection failed", zap.Error(err))
		return
	}

	processed := 0
	for i := range stale {
		if ctx.Err() != nil {
			return
		}
		if err := c.closeOne(ctx, &stale[i]); err != nil {
			c.metrics.RecordJobItemFailure(closerJob)
			c.logger.Warn("staleness closure failed",
				zap.String("query_id", stale[i].ID),
				zap.String("display_id", stale[i].DisplayID),
				zap.Error(err))
			continue
		}
		processed++
	}
	c.metrics.RecordJobRun(closerJob, processed)
	c.logger.Info("staleness pass complete",
		zap.Int("stale", len(stale)),
		zap.Int("closed", processed))
}

func (c *StalenessCloser) closeOne(ctx context.Context, query *domain.Query) error {
	itemCtx, cancel := context.WithTimeout(ctx, c.cfg.ItemTimeout())
	defer cancel()

	updated, err := c.queries.ForceClose(itemCtx, query.ID)
	if err != nil {
		if errors.Is(err, repository.ErrQueryCompleted) {
			// Completed between selection and closure; leave untouched.
			return nil
		}
		return err
	}

	if c.dispatcher != nil {
		_ = c.dispatcher.Publish(itemCtx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventQueryForceClosed,
			QueryID:   updated.ID,
			Timestamp: time.Now(),
			Payload:   events.QueryForceClosedPayload{IdleSince: query.UpdatedAt},
		})
	}
	return nil
}
