package domain

import "time"

// Notification is the persisted record of a routing-change notification,
// written before the delivery job is queued so dispatch failures leave an
// auditable trace.
type Notification struct {
	ID          string
	QueryID     string
	InstituteID string
	Title       string
	Body        string
	CreatedAt   time.Time
}
