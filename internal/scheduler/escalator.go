package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/query-routing-service/internal/config"
	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/observability"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

const escalatorJob = "escalator"

// Escalator walks idle open queries and routes each one level up the
// institute hierarchy. A query is escalated at most once per idle-threshold
// crossing; the repository stamps last_escalated_at on success. Queries whose
// responding institute has no parent sit at the apex and are skipped.
type Escalator struct {
	queries    QueryStore
	institutes InstituteStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SchedulerConfig
}

// NewEscalator constructs the scheduler.
func NewEscalator(queries QueryStore, institutes InstituteStore, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.SchedulerConfig) *Escalator {
	return &Escalator{
		queries:    queries,
		institutes: institutes,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Run ticks until the context is cancelled.
func (e *Escalator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.EscalateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single escalation pass. Failures are isolated per query
// so one bad record cannot abort the batch.
func (e *Escalator) RunOnce(ctx context.Context) {
	idleBefore := time.Now().Add(-e.cfg.EscalateIdle())
	candidates, err := e.queries.ListEscalatable(ctx, idleBefore)
	if err != nil {
		e.logger.Error("escalation candidate query failed", zap.Error(err))
		return
	}

	processed := 0
	for i := range candidates {
		if ctx.Err() != nil {
			return
		}
		if err := e.escalateOne(ctx, &candidates[i]); err != nil {
			e.metrics.RecordJobItemFailure(escalatorJob)
			e.logger.Warn("escalation failed",
				zap.String("query_id", candidates[i].ID),
				zap.String("display_id", candidates[i].DisplayID),
				zap.Error(err))
			continue
		}
		processed++
	}
	e.metrics.RecordJobRun(escalatorJob, processed)
	e.logger.Info("escalation pass complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("escalated", processed))
}

func (e *Escalator) escalateOne(ctx context.Context, query *domain.Query) error {
	itemCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeout())
	defer cancel()

	if query.RespondingInstituteID == nil {
		e.logger.Warn("query has no responding institute", zap.String("query_id", query.ID))
		return nil
	}

	parent, err := e.institutes.GetParent(itemCtx, *query.RespondingInstituteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Apex-level queries are never escalated further.
			e.logger.Debug("query already at apex", zap.String("query_id", query.ID))
			return nil
		}
		return err
	}

	from := query.RespondingInstituteID
	updated, err := e.queries.Escalate(itemCtx, query.ID, parent.ID, parent.RoleID)
	if err != nil {
		if errors.Is(err, repository.ErrQueryCompleted) {
			// Answered between selection and escalation; nothing to do.
			return nil
		}
		return err
	}

	if e.dispatcher != nil {
		_ = e.dispatcher.Publish(itemCtx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventQueryEscalated,
			QueryID:   updated.ID,
			Timestamp: time.Now(),
			Payload: events.QueryEscalatedPayload{
				FromInstituteID: from,
				ToInstituteID:   parent.ID,
			},
		})
	}
	return nil
}
