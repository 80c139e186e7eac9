package dto

import (
	"time"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// RaiseQueryRequest payload.
type RaiseQueryRequest struct {
	PatientAge     *int   `json:"patient_age"`
	Diagnosis      string `json:"diagnosis"`
	ChiefComplaint string `json:"chief_complaint"`
	IllnessSummary string `json:"illness_summary"`
	QuestionText   string `json:"question_text"`
}

// RespondQueryRequest payload.
type RespondQueryRequest struct {
	ResponseText string `json:"response_text"`
}

// TransferQueriesRequest payload.
type TransferQueriesRequest struct {
	QueryIDs          []string `json:"query_ids"`
	TargetInstituteID string   `json:"target_institute_id"`
}

// QuerySummary response. History is audit-internal and never serialized.
type QuerySummary struct {
	ID                    string             `json:"id"`
	DisplayID             string             `json:"display_id"`
	QuestionText          string             `json:"question_text"`
	RaisingInstituteID    string             `json:"raising_institute_id"`
	RespondingInstituteID *string            `json:"responding_institute_id"`
	ResponseText          *string            `json:"response_text"`
	Status                domain.QueryStatus `json:"status"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// QueryDetailResponse provides the full clinical payload and routing state.
type QueryDetailResponse struct {
	ID                    string             `json:"id"`
	DisplayID             string             `json:"display_id"`
	PatientAge            *int               `json:"patient_age"`
	Diagnosis             string             `json:"diagnosis"`
	ChiefComplaint        string             `json:"chief_complaint"`
	IllnessSummary        string             `json:"illness_summary"`
	QuestionText          string             `json:"question_text"`
	RaisedByUserID        string             `json:"raised_by_user_id"`
	RaisingInstituteID    string             `json:"raising_institute_id"`
	RespondedByUserID     *string            `json:"responded_by_user_id"`
	RespondingInstituteID *string            `json:"responding_institute_id"`
	ResponseText          *string            `json:"response_text"`
	Status                domain.QueryStatus `json:"status"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// TransferredQueryResponse annotates a summary with the institute it moved to.
type TransferredQueryResponse struct {
	QuerySummary
	MovedTo string `json:"moved_to"`
}

// QueueResponse carries the raised-side and assigned-side lists.
type QueueResponse struct {
	Raised   []QuerySummary `json:"raised,omitempty"`
	Assigned []QuerySummary `json:"assigned,omitempty"`
}

// ReportCountsResponse is the per-institute report.
type ReportCountsResponse struct {
	Total        int64 `json:"total"`
	Open         int64 `json:"open"`
	Closed       int64 `json:"closed"`
	Transferred  int64 `json:"transferred"`
	RaisedOpen   int64 `json:"raised_open"`
	RaisedClosed int64 `json:"raised_closed"`
}

// SnapshotResponse is one audit trail entry.
type SnapshotResponse struct {
	ID                    string             `json:"id"`
	Status                domain.QueryStatus `json:"status"`
	RespondedByUserID     *string            `json:"responded_by_user_id"`
	RespondingInstituteID *string            `json:"responding_institute_id"`
	TransferredByUserID   *string            `json:"transferred_by_user_id"`
	TransferredByAdminID  *string            `json:"transferred_by_admin_id"`
	ResponseText          *string            `json:"response_text"`
	CreatedAt             time.Time          `json:"created_at"`
}
