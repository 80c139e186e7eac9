package domain

import "time"

// QuerySnapshot is an immutable audit entry: a copy of a query's mutable
// routing/response fields taken immediately before the mutation that
// triggered the append. Replaying a query's snapshots in creation order
// reconstructs every prior responsible institute.
type QuerySnapshot struct {
	ID      string
	QueryID string

	Status                QueryStatus
	RespondedByUserID     *string
	RespondingRoleID      *string
	RespondingInstituteID *string
	TransferredByUserID   *string
	TransferredByAdminID  *string
	ResponseText          *string

	CreatedAt time.Time
}

// SnapshotOf copies the mutable routing/response fields of q. Callers append
// the result to the audit log before applying their mutation.
func SnapshotOf(q *Query) *QuerySnapshot {
	return &QuerySnapshot{
		QueryID:               q.ID,
		Status:                q.Status,
		RespondedByUserID:     q.RespondedByUserID,
		RespondingRoleID:      q.RespondingRoleID,
		RespondingInstituteID: q.RespondingInstituteID,
		TransferredByUserID:   q.TransferredByUserID,
		TransferredByAdminID:  q.TransferredByAdminID,
		ResponseText:          q.ResponseText,
	}
}
