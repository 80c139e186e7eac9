package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-routing-service/internal/api/dto"
	"github.com/spec-kit/query-routing-service/internal/service"
)

// InstitutesHandler serves the per-institute queue and report endpoints.
type InstitutesHandler struct {
	views *service.ViewService
}

// NewInstitutesHandler constructs the handler.
func NewInstitutesHandler(views *service.ViewService) *InstitutesHandler {
	return &InstitutesHandler{views: views}
}

// ListOpen GET /institutes/:id/queries/open.
func (h *InstitutesHandler) ListOpen(c *fiber.Ctx) error {
	queues, err := h.views.ListOpen(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": queueResponse(queues)})
}

// ListClosed GET /institutes/:id/queries/closed.
func (h *InstitutesHandler) ListClosed(c *fiber.Ctx) error {
	queues, err := h.views.ListClosed(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": queueResponse(queues)})
}

// ListTransferred GET /institutes/:id/queries/transferred.
func (h *InstitutesHandler) ListTransferred(c *fiber.Ctx) error {
	items, err := h.views.ListTransferred(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	result := make([]dto.TransferredQueryResponse, 0, len(items))
	for i := range items {
		result = append(result, dto.TransferredQueryResponse{
			QuerySummary: querySummary(&items[i].Query),
			MovedTo:      items[i].MovedTo,
		})
	}
	return c.JSON(fiber.Map{"data": result})
}

// ReportCounts GET /institutes/:id/queries/report.
func (h *InstitutesHandler) ReportCounts(c *fiber.Ctx) error {
	counts, err := h.views.ReportCounts(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReportCountsResponse{
		Total:        counts.Total,
		Open:         counts.Open,
		Closed:       counts.Closed,
		Transferred:  counts.Transferred,
		RaisedOpen:   counts.RaisedOpen,
		RaisedClosed: counts.RaisedClosed,
	}})
}

func queueResponse(queues *service.Queues) dto.QueueResponse {
	resp := dto.QueueResponse{}
	for i := range queues.Raised {
		resp.Raised = append(resp.Raised, querySummary(&queues.Raised[i]))
	}
	for i := range queues.Assigned {
		resp.Assigned = append(resp.Assigned, querySummary(&queues.Assigned[i]))
	}
	return resp
}
