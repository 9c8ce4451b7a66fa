package workflow

import (
	"ghg-workflow-backend/internal/application/lifecycle"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ComputeRequest struct {
	ActivityRecordID uuid.UUID        `json:"activity_record_id"`
	EmissionFactor   decimal.Decimal  `json:"emission_factor"`
	FactorSource     string           `json:"factor_source"`
	Scope            int              `json:"scope"`
	Category         string           `json:"category"`
	GWP              *decimal.Decimal `json:"gwp"`
	UnitConversion   *decimal.Decimal `json:"unit_conversion"`
	Notes            string           `json:"notes"`
}

// Return POST /transformation/:id/return
func (h *Handlers) Return(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Orchestrator.ReturnProject(c.UserContext(), id, actor, req.Comments)
	if err != nil {
		return response.FromError(c, err)
	}
	return transitioned(c, "Project returned", a)
}

// Map POST /transformation/:id/map
func (h *Handlers) Map(c *fiber.Ctx) error {
	actor, id, err := call(c, nil)
	if err != nil {
		return response.FromError(c, err)
	}
	m, err := h.Orchestrator.MapToCalculationSchema(c.UserContext(), id, actor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Data mapped to calculation schema", m, nil)
}

// Transform POST /transformation/:id/transform
func (h *Handlers) Transform(c *fiber.Ctx) error {
	var req ComputeRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	calc, err := h.Orchestrator.ComputeCalculation(c.UserContext(), id, actor, lifecycle.ComputeInput{
		ActivityRecordID: req.ActivityRecordID,
		Factor:           req.EmissionFactor,
		FactorSource:     req.FactorSource,
		Scope:            req.Scope,
		Category:         req.Category,
		GWP:              req.GWP,
		UnitConversion:   req.UnitConversion,
		Notes:            req.Notes,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Calculation stored", fiber.Map{"calculation": calc}, nil)
}

// Calculations GET /transformation/:id/calculations
func (h *Handlers) Calculations(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	calcs, err := h.Orchestrator.ListCalculations(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Calculations retrieved", calcs, fiber.Map{"count": len(calcs)})
}

// Validate POST /transformation/:id/validate
func (h *Handlers) Validate(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	rep, err := h.Orchestrator.ValidateCalculations(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Calculations validated", rep, nil)
}

// UpdateTotals POST /transformation/:id/update-totals
func (h *Handlers) UpdateTotals(c *fiber.Ctx) error {
	actor, id, err := call(c, nil)
	if err != nil {
		return response.FromError(c, err)
	}
	totals, err := h.Orchestrator.UpdateTotals(c.UserContext(), id, actor)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Project totals updated", totals, nil)
}

// SubmitReview POST /transformation/:id/submit-review
func (h *Handlers) SubmitReview(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Orchestrator.SubmitForReview(c.UserContext(), id, actor, req.Comments)
	if err != nil {
		return response.FromError(c, err)
	}
	return transitioned(c, "Project submitted for review", a)
}
