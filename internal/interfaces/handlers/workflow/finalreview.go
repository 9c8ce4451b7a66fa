package workflow

import (
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Review GET /final-review/:id/review
func (h *Handlers) Review(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rev, err := h.Reporting.FinalDataReview(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Final data review retrieved", rev, nil)
}

// FinalApprove POST /final-review/:id/approve locks the project.
func (h *Handlers) FinalApprove(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Orchestrator.FinalApprove(c.UserContext(), id, actor, req.Comments)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project approved and locked", fiber.Map{
		"approval":   out.Record,
		"project":    out.Transition.Project,
		"transition": out.Transition.Entry,
	}, nil)
}

// ApprovalDocs GET /final-review/:id/approval-docs
func (h *Handlers) ApprovalDocs(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	docs, err := h.Reporting.ApprovalDocs(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Approval documents generated", docs, nil)
}

// Archive POST /final-review/:id/archive
func (h *Handlers) Archive(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	receipt, err := h.Orchestrator.Archive(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project archived", receipt, nil)
}
