package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/query-routing-service/internal/config"
	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

// NotificationService informs subscribers whenever a query's responsible
// institute changes. Dispatch is best-effort: every failure is logged and
// swallowed so routing mutations never roll back on delivery problems.
type NotificationService struct {
	dispatcher    events.Dispatcher
	subscribers   repository.SubscriberRepository
	notifications repository.NotificationRepository
	queue         *redis.Client
	logger        *zap.Logger
	cfg           config.NotificationConfig
}

// DeliveryJob is the payload handed to the external delivery queue.
type DeliveryJob struct {
	NotificationID string   `json:"notification_id"`
	QueryID        string   `json:"query_id"`
	InstituteID    string   `json:"institute_id"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	DeviceTokens   []string `json:"device_tokens"`
	ChannelTag     string   `json:"channel_tag"`
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, subscribers repository.SubscriberRepository, notifications repository.NotificationRepository, queue *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher:    dispatcher,
		subscribers:   subscribers,
		notifications: notifications,
		queue:         queue,
		logger:        logger,
		cfg:           cfg,
	}
}

// RegisterHandlers subscribes to every event that moves responsibility.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventQueryRaised, n.handleQueryRaised)
	n.dispatcher.Subscribe(events.EventQueryTransferred, n.handleQueryTransferred)
	n.dispatcher.Subscribe(events.EventQueryEscalated, n.handleQueryEscalated)
}

func (n *NotificationService) handleQueryRaised(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.QueryRaisedPayload)
	if !ok {
		return nil
	}
	title := fmt.Sprintf("New query %s awaiting response", payload.DisplayID)
	n.fanOut(ctx, event.QueryID, payload.RespondingInstituteID, title, "A query was routed to your institute.")
	return nil
}

func (n *NotificationService) handleQueryTransferred(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.QueryTransferredPayload)
	if !ok {
		return nil
	}
	n.fanOut(ctx, event.QueryID, payload.ToInstituteID, "Query transferred to your institute", "A query was transferred to your institute for response.")
	return nil
}

func (n *NotificationService) handleQueryEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.QueryEscalatedPayload)
	if !ok {
		return nil
	}
	n.fanOut(ctx, event.QueryID, payload.ToInstituteID, "Query escalated to your institute", "An unanswered query was escalated to your institute.")
	return nil
}

// fanOut persists a notification per subscriber batch and queues one delivery
// job per subscriber with their device tokens.
func (n *NotificationService) fanOut(ctx context.Context, queryID, instituteID, title, body string) {
	subs, err := n.subscribers.ListByInstitute(ctx, instituteID)
	if err != nil {
		n.logger.Warn("subscriber lookup failed", zap.String("institute_id", instituteID), zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	record := &domain.Notification{
		QueryID:     queryID,
		InstituteID: instituteID,
		Title:       title,
		Body:        body,
	}
	if err := n.notifications.Create(ctx, record); err != nil {
		n.logger.Warn("notification persist failed", zap.String("query_id", queryID), zap.Error(err))
		return
	}

	for _, sub := range subs {
		job := DeliveryJob{
			NotificationID: record.ID,
			QueryID:        queryID,
			InstituteID:    instituteID,
			Title:          title,
			Body:           body,
			DeviceTokens:   sub.DeviceTokens,
			ChannelTag:     n.cfg.ChannelTag,
		}
		if err := n.enqueue(ctx, job); err != nil {
			n.logger.Warn("notification enqueue failed",
				zap.String("query_id", queryID),
				zap.String("subscriber_id", sub.ID),
				zap.Error(err))
		}
	}
}

func (n *NotificationService) enqueue(ctx context.Context, job DeliveryJob) error {
	if n.queue == nil {
		return nil
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return n.queue.LPush(ctx, n.cfg.QueueKey, raw).Err()
}
