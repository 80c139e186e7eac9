package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-routing-service/internal/api/dto"
	"github.com/spec-kit/query-routing-service/internal/auth"
	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/repository"
	"github.com/spec-kit/query-routing-service/internal/service"
	apperrors "github.com/spec-kit/query-routing-service/pkg/util"
)

// QueriesHandler manages query lifecycle endpoints.
type QueriesHandler struct {
	routing *service.RoutingService
	history repository.QueryHistoryRepository
}

// NewQueriesHandler constructs the handler.
func NewQueriesHandler(routing *service.RoutingService, history repository.QueryHistoryRepository) *QueriesHandler {
	return &QueriesHandler{routing: routing, history: history}
}

// RaiseQuery POST /queries.
func (h *QueriesHandler) RaiseQuery(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("principal required")
	}
	var req dto.RaiseQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.QuestionText) == "" {
		return apperrors.NewValidationError("question_text required", nil)
	}

	query, err := h.routing.RaiseQuery(c.Context(), service.RaiseQueryInput{
		RaisedByUserID:     principal.UserID,
		RaisedByRoleID:     principal.RoleID,
		RaisingInstituteID: principal.InstituteID,
		PatientAge:         req.PatientAge,
		Diagnosis:          req.Diagnosis,
		ChiefComplaint:     req.ChiefComplaint,
		IllnessSummary:     req.IllnessSummary,
		QuestionText:       req.QuestionText,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": queryDetail(query)})
}

// RespondQuery POST /queries/:id/response.
func (h *QueriesHandler) RespondQuery(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("principal required")
	}
	var req dto.RespondQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	query, err := h.routing.RespondToQuery(c.Context(), c.Params("id"), principal.UserID, req.ResponseText)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": queryDetail(query)})
}

// TransferQueries POST /queries/transfer.
func (h *QueriesHandler) TransferQueries(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("principal required")
	}
	var req dto.TransferQueriesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.QueryIDs) == 0 || req.TargetInstituteID == "" {
		return apperrors.NewValidationError("query_ids and target_institute_id required", nil)
	}

	actorKind := domain.ActorKindUser
	if principal.IsAdmin() {
		actorKind = domain.ActorKindAdmin
	}
	if err := h.routing.TransferQueries(c.Context(), req.QueryIDs, req.TargetInstituteID, principal.UserID, actorKind); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"transferred": len(req.QueryIDs)}})
}

// GetQuery GET /queries/:id.
func (h *QueriesHandler) GetQuery(c *fiber.Ctx) error {
	query, err := h.routing.GetQuery(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": queryDetail(query)})
}

// GetQueryHistory GET /queries/:id/history. Admin-facing audit trail.
func (h *QueriesHandler) GetQueryHistory(c *fiber.Ctx) error {
	query, err := h.routing.GetQuery(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	snapshots, err := h.history.ListByQuery(c.Context(), query.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.SnapshotResponse, 0, len(snapshots))
	for i := range snapshots {
		items = append(items, snapshotResponse(&snapshots[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func queryDetail(q *domain.Query) dto.QueryDetailResponse {
	return dto.QueryDetailResponse{
		ID:                    q.ID,
		DisplayID:             q.DisplayID,
		PatientAge:            q.PatientAge,
		Diagnosis:             q.Diagnosis,
		ChiefComplaint:        q.ChiefComplaint,
		IllnessSummary:        q.IllnessSummary,
		QuestionText:          q.QuestionText,
		RaisedByUserID:        q.RaisedByUserID,
		RaisingInstituteID:    q.RaisingInstituteID,
		RespondedByUserID:     q.RespondedByUserID,
		RespondingInstituteID: q.RespondingInstituteID,
		ResponseText:          q.ResponseText,
		Status:                q.Status,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
}

func querySummary(q *domain.Query) dto.QuerySummary {
	return dto.QuerySummary{
		ID:                    q.ID,
		DisplayID:             q.DisplayID,
		QuestionText:          q.QuestionText,
		RaisingInstituteID:    q.RaisingInstituteID,
		RespondingInstituteID: q.RespondingInstituteID,
		ResponseText:          q.ResponseText,
		Status:                q.Status,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
}

func snapshotResponse(s *domain.QuerySnapshot) dto.SnapshotResponse {
	return dto.SnapshotResponse{
		ID:                    s.ID,
		Status:                s.Status,
		RespondedByUserID:     s.RespondedByUserID,
		RespondingInstituteID: s.RespondingInstituteID,
		TransferredByUserID:   s.TransferredByUserID,
		TransferredByAdminID:  s.TransferredByAdminID,
		ResponseText:          s.ResponseText,
		CreatedAt:             s.CreatedAt,
	}
}
