package worker

import (
	"github.com/spec-kit/query-routing-service/internal/service"
)

// StartEventHandlers registers the downstream consumers of routing events:
// notification fan-out and responder stats.
func StartEventHandlers(notifications *service.NotificationService, stats *service.StatsService) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if stats != nil {
		stats.RegisterHandlers()
	}
}
