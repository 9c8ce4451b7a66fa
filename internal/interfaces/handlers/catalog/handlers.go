// Package catalog serves the reference data used while calculating and reviewing:
// emission factors, reporting criteria and rejection reason codes.
package catalog

import (
	"ghg-workflow-backend/internal/application/factors"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Factors *factors.Service
}

// SearchFactors GET /api/v1/factors?q=&scope=&category=&region=&limit=
func (h *Handlers) SearchFactors(c *fiber.Ctx) error {
	scope, err := request.IntQuery(c, "scope")
	if err != nil {
		return response.FromError(c, err)
	}
	limit, err := request.IntQuery(c, "limit")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Factors.Search(c.UserContext(), factors.Query{
		Text:     c.Query("q"),
		Scope:    scope,
		Category: c.Query("category"),
		Region:   c.Query("region"),
		Limit:    limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Emission factors retrieved", out, fiber.Map{"count": len(out)})
}

// GetFactor GET /api/v1/factors/:id
func (h *Handlers) GetFactor(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	f, err := h.Factors.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Emission factor retrieved", f, nil)
}

// ReasonCodes GET /api/v1/reason-codes?all=true includes retired codes.
func (h *Handlers) ReasonCodes(c *fiber.Ctx) error {
	out, err := h.Factors.ReasonCodes(c.UserContext(), c.QueryBool("all", false))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reason codes retrieved", out, fiber.Map{"count": len(out)})
}

// ListCriteria GET /api/v1/criteria?scope=&all=
func (h *Handlers) ListCriteria(c *fiber.Ctx) error {
	scope, err := request.IntQuery(c, "scope")
	if err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Factors.Criteria(c.UserContext(), scope, c.QueryBool("all", false))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Criteria retrieved", out, fiber.Map{"count": len(out)})
}
