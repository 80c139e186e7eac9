package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/query-routing-service/internal/events"
)

const solvedCounterPrefix = "responder:solved:"

// StatsService keeps the per-responder solved counters. It consumes the
// responded event so the routing engine itself stays free of counter side
// effects.
type StatsService struct {
	dispatcher events.Dispatcher
	counters   *redis.Client
	logger     *zap.Logger
}

// NewStatsService creates the service.
func NewStatsService(dispatcher events.Dispatcher, counters *redis.Client, logger *zap.Logger) *StatsService {
	return &StatsService{dispatcher: dispatcher, counters: counters, logger: logger}
}

// RegisterHandlers subscribes to responded events.
func (s *StatsService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventQueryResponded, s.handleQueryResponded)
}

func (s *StatsService) handleQueryResponded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.QueryRespondedPayload)
	if !ok || payload.ResponderID == "" {
		return nil
	}
	if s.counters == nil {
		return nil
	}
	if err := s.counters.Incr(ctx, solvedCounterPrefix+payload.ResponderID).Err(); err != nil {
		s.logger.Warn("solved counter increment failed",
			zap.String("responder_id", payload.ResponderID),
			zap.Error(err))
	}
	return nil
}

// SolvedCount reads a responder's solved counter.
func (s *StatsService) SolvedCount(ctx context.Context, responderID string) (int64, error) {
	if s.counters == nil {
		return 0, nil
	}
	n, err := s.counters.Get(ctx, solvedCounterPrefix+responderID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
