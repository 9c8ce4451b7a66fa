package workflow

import (
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Verify GET /verification/:id/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rep, err := h.Orchestrator.VerifyIntegrity(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Integrity verified", rep, nil)
}

// Compliance GET /verification/:id/compliance
func (h *Handlers) Compliance(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rep, err := h.Orchestrator.CheckProtocolCompliance(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Protocol compliance checked", rep, nil)
}

// Approve POST /verification/:id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Orchestrator.ApproveReview(c.UserContext(), id, actor, req.Comments)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Review approved", fiber.Map{
		"decision":   out.Decision,
		"project":    out.Transition.Project,
		"transition": out.Transition.Entry,
	}, nil)
}

// Reject POST /verification/:id/reject. Requires comments and a reason code.
func (h *Handlers) Reject(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Orchestrator.RejectReview(c.UserContext(), id, actor, req.Comments, req.ReasonCode)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Review rejected", fiber.Map{
		"decision":   out.Decision,
		"project":    out.Transition.Project,
		"transition": out.Transition.Entry,
	}, nil)
}

// Report GET /verification/:id/report
func (h *Handlers) Report(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rep, err := h.Reporting.VerificationReport(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Verification report generated", rep, nil)
}
