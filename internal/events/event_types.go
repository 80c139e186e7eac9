package events

import (
	"time"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQueryRaised      EventType = "query_raised"
	EventQueryResponded   EventType = "query_responded"
	EventQueryTransferred EventType = "query_transferred"
	EventQueryEscalated   EventType = "query_escalated"
	EventQueryForceClosed EventType = "query_force_closed"
)

// Actor encapsulates actor metadata for an event. System events (scheduler
// jobs) carry no actor id.
type Actor struct {
	Kind   domain.ActorKind `json:"kind,omitempty"`
	UserID *string          `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	QueryID   string      `json:"query_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QueryRaisedPayload carries initial routing of a new query.
type QueryRaisedPayload struct {
	DisplayID             string `json:"display_id"`
	RaisingInstituteID    string `json:"raising_institute_id"`
	RespondingInstituteID string `json:"responding_institute_id"`
}

// QueryRespondedPayload carries the answer metadata.
type QueryRespondedPayload struct {
	ResponderID string `json:"responder_id"`
}

// QueryTransferredPayload carries the new responsibility after a transfer.
type QueryTransferredPayload struct {
	FromInstituteID *string `json:"from_institute_id,omitempty"`
	ToInstituteID   string  `json:"to_institute_id"`
}

// QueryEscalatedPayload carries the new responsibility after an escalation.
type QueryEscalatedPayload struct {
	FromInstituteID *string `json:"from_institute_id,omitempty"`
	ToInstituteID   string  `json:"to_institute_id"`
}

// QueryForceClosedPayload marks a staleness closure.
type QueryForceClosedPayload struct {
	IdleSince time.Time `json:"idle_since"`
}
