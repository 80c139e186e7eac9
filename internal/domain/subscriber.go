package domain

import "time"

// Subscriber is an account watching an institute for newly routed queries.
// Whenever a query's responsible institute changes, every subscriber of the
// new institute receives a notification on their registered devices.
type Subscriber struct {
	ID           string
	UserID       string
	InstituteID  string
	DeviceTokens []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
