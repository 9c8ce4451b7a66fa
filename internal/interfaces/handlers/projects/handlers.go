package projects

import (
	"ghg-workflow-backend/internal/application/audit"
	projectsvc "ghg-workflow-backend/internal/application/projects"
	"ghg-workflow-backend/internal/application/reporting"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service   *projectsvc.Service
	Reporting *reporting.Service
	Audit     *audit.Service
}

type CreateRequest struct {
	Name          string `json:"name"`
	Organization  string `json:"organization"`
	Description   string `json:"description"`
	ReportingYear int    `json:"reporting_year"`
}

type UpdateRequest struct {
	Name          *string `json:"name"`
	Organization  *string `json:"organization"`
	Description   *string `json:"description"`
	ReportingYear *int    `json:"reporting_year"`
}

// Create POST /api/v1/projects
func (h *Handlers) Create(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req CreateRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Create(c.UserContext(), actor, projectsvc.CreateInput(req))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Project created", fiber.Map{"project": p}, nil)
}

// List GET /api/v1/projects?status=&reporting_year=&organization=&page=&page_size=
func (h *Handlers) List(c *fiber.Ctx) error {
	year, err := request.IntQuery(c, "reporting_year")
	if err != nil {
		return response.FromError(c, err)
	}
	page, err := request.IntQuery(c, "page")
	if err != nil {
		return response.FromError(c, err)
	}
	size, err := request.IntQuery(c, "page_size")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.List(c.UserContext(), projectsvc.ListFilter{
		Status:        domain.Status(c.Query("status")),
		ReportingYear: year,
		Organization:  c.Query("organization"),
		Page:          page,
		PageSize:      size,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Projects retrieved", out.Items, fiber.Map{
		"total":     out.Total,
		"page":      out.Page,
		"page_size": out.PageSize,
	})
}

// Get GET /api/v1/projects/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project retrieved", fiber.Map{"project": p}, nil)
}

// Update PATCH /api/v1/projects/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req UpdateRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Update(c.UserContext(), id, actor, projectsvc.UpdateInput(req))
	if err != nil {
		return response.FromError(c, err)
	}
	if h.Reporting != nil {
		h.Reporting.Invalidate(c.UserContext(), id)
	}
	return response.Success(c, "Project updated", fiber.Map{"project": p}, nil)
}

// Delete DELETE /api/v1/projects/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), id, actor); err != nil {
		return response.FromError(c, err)
	}
	if h.Reporting != nil {
		h.Reporting.Invalidate(c.UserContext(), id)
	}
	return response.Success(c, "Project deleted", nil, nil)
}

// Status GET /api/v1/projects/:id/status. Lane, available transitions for the caller, counts.
func (h *Handlers) Status(c *fiber.Ctx) error {
	actor, err := request.Actor(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	st, err := h.Reporting.ProjectStatus(c.UserContext(), id, actor.Role)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project status retrieved", st, nil)
}

// Transitions GET /api/v1/projects/:id/transitions. The project's transition history.
func (h *Handlers) Transitions(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	limit, err := request.IntQuery(c, "limit")
	if err != nil {
		return response.FromError(c, err)
	}
	entries, err := h.Audit.Trail(c.UserContext(), id, audit.Filter{Action: c.Query("action"), Limit: limit})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transitions retrieved", entries, fiber.Map{"count": len(entries)})
}
