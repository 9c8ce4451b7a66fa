package reporting

import (
	"time"

	"ghg-workflow-backend/internal/application/audit"
	reportsvc "ghg-workflow-backend/internal/application/reporting"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *reportsvc.Service
	Audit   *audit.Service
}

// Dashboard GET /api/v1/reporting/:id/dashboard
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	d, err := h.Service.Dashboard(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dashboard retrieved", d, nil)
}

// GHGReport GET /api/v1/reporting/:id/ghg-report
func (h *Handlers) GHGReport(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	r, err := h.Service.GHGReport(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "GHG report generated", r, nil)
}

// ComplianceStatus GET /api/v1/reporting/:id/compliance-status
func (h *Handlers) ComplianceStatus(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	s, err := h.Service.ComplianceStatus(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Compliance status retrieved", s, nil)
}

// AuditTrail GET /api/v1/reporting/:id/audit-trail?action=&actor_id=&since=&limit=
func (h *Handlers) AuditTrail(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	f, err := trailFilter(c)
	if err != nil {
		return response.FromError(c, err)
	}
	entries, err := h.Audit.Trail(c.UserContext(), id, f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Audit trail retrieved", entries, fiber.Map{"count": len(entries)})
}

func trailFilter(c *fiber.Ctx) (audit.Filter, error) {
	limit, err := request.IntQuery(c, "limit")
	if err != nil {
		return audit.Filter{}, err
	}
	f := audit.Filter{Action: c.Query("action"), Limit: limit}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return audit.Filter{}, &domain.ValidationError{Field: "actor_id", Rule: "must be a valid UUID"}
		}
		f.ActorID = &id
	}
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, &domain.ValidationError{Field: "since", Rule: "must be an RFC 3339 timestamp"}
		}
		f.Since = &t
	}
	return f, nil
}
