package domain

import "time"

// QueryStatus enumerates lifecycle states for raised queries.
type QueryStatus string

const (
	QueryStatusOpen        QueryStatus = "OPEN"
	QueryStatusInProgress  QueryStatus = "IN_PROGRESS"
	QueryStatusTransferred QueryStatus = "TRANSFERRED"
	QueryStatusCompleted   QueryStatus = "COMPLETED"
)

// ActorKind distinguishes who performed a transfer.
type ActorKind string

const (
	ActorKindUser  ActorKind = "USER"
	ActorKindAdmin ActorKind = "ADMIN"
)

// Query is the central aggregate: a question raised by field staff, routed
// up the institute hierarchy until answered or force-closed. COMPLETED is
// terminal; a completed query never mutates again.
type Query struct {
	ID        string
	DisplayID string

	// Clinical payload, opaque to the routing engine.
	PatientAge     *int
	Diagnosis      string
	ChiefComplaint string
	IllnessSummary string
	QuestionText   string

	RaisedByUserID     string
	RaisedByRoleID     string
	RaisingInstituteID string

	RespondedByUserID      *string
	RespondingRoleID       *string
	RespondingInstituteID  *string
	TransferredByUserID    *string
	TransferredByAdminID   *string

	// Nil while the query is unanswered. A COMPLETED query with a nil
	// ResponseText was force-closed by the staleness closer, not answered.
	ResponseText *string

	Status QueryStatus

	// Stamped by the escalator so a query is escalated at most once per
	// idle-threshold crossing.
	LastEscalatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Answered reports whether the query carries a real response, as opposed to
// having been force-closed with no answer.
func (q *Query) Answered() bool {
	return q.ResponseText != nil
}

// Completed reports whether the query reached its terminal state.
func (q *Query) Completed() bool {
	return q.Status == QueryStatusCompleted
}
